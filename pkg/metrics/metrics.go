package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess        = "success"
	OutcomePending        = "pending"
	OutcomeSlowDown       = "slow_down"
	OutcomeError          = "error"
	OutcomeServerError    = "server_error"
	OutcomeTransportError = "transport_error"
	OutcomeExpired        = "expired"
	OutcomeCanceled       = "canceled"
)

// Registry holds tokenctl metrics only, so the textfile export does not carry
// Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenctl_token_requests_total",
		Help: "Total number of token endpoint requests grouped by grant type and outcome",
	}, []string{"grant", "outcome"})
	DevicePolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenctl_device_polls_total",
		Help: "Total number of device flow polls grouped by result",
	}, []string{"result"})
	Flows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenctl_flows_total",
		Help: "Total number of login flows grouped by flow and terminal outcome",
	}, []string{"flow", "outcome"})
	FlowDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenctl_flow_duration_seconds",
		Help:    "Wall time from flow start to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	}, []string{"flow"})
)

func init() {
	Registry.MustRegister(TokenRequests)
	Registry.MustRegister(DevicePolls)
	Registry.MustRegister(Flows)
	Registry.MustRegister(FlowDuration)
}

// WriteTextfile writes all tokenctl metrics to path in the Prometheus text
// format, suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
