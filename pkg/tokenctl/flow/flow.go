package flow

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/telekom/tokenctl/pkg/metrics"
	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
)

// Flow names used in logs and metrics.
const (
	NameAuthorizationCode = "authorization_code"
	NameDevice            = "device"
)

// ErrExpired is returned when the device code lifetime or the configured
// polling bound elapses before the user approves the request.
var ErrExpired = errors.New("device code expired before authorization completed")

// State is a node of a flow state machine.
type State string

const (
	StateIdle             State = "Idle"
	StateAwaitingCallback State = "AwaitingCallback"
	StateExchanging       State = "Exchanging"
	StateDisplaying       State = "Displaying"
	StatePolling          State = "Polling"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
	StateExpired          State = "Expired"
)

// Clock is the subset of k8s.io/utils/clock.Clock the flows depend on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Exchanger performs one token endpoint POST.
type Exchanger interface {
	Exchange(ctx context.Context, params url.Values) (*oauth.TokenResponse, error)
}

// Initiator performs one device authorization endpoint POST.
type Initiator interface {
	InitiateDeviceAuthorization(ctx context.Context, clientID, codeChallenge string) (*oauth.DeviceAuthorization, error)
}

// LoginResult is the terminal success of either flow.
type LoginResult struct {
	Token    *oauth2.Token
	IDToken  string
	Response *oauth.TokenResponse
}

type tracker struct {
	state    State
	onChange func(State)
	log      *zap.SugaredLogger
}

func newTracker(log *zap.SugaredLogger, onChange func(State)) *tracker {
	t := &tracker{state: StateIdle, onChange: onChange, log: log}
	if onChange != nil {
		onChange(StateIdle)
	}
	return t
}

func (t *tracker) enter(next State) {
	t.log.Debugw("Flow state changed", "from", t.state, "to", next)
	t.state = next
	if t.onChange != nil {
		t.onChange(next)
	}
}

// tokenResult maps a token endpoint response onto the terminal outcome.
func tokenResult(resp *oauth.TokenResponse, now time.Time) (*LoginResult, error) {
	if resp.AccessToken != "" {
		return &LoginResult{Token: resp.Token(now), IDToken: resp.IDToken, Response: resp}, nil
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return nil, &oauth.ServerError{
		Endpoint:   "token",
		StatusCode: resp.StatusCode,
		Err:        errors.New("response carries neither access_token nor error"),
	}
}

func observe(flow string, start, end time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeCanceled
	case errors.Is(err, ErrExpired):
		outcome = metrics.OutcomeExpired
	default:
		outcome = metrics.OutcomeError
	}
	metrics.Flows.WithLabelValues(flow, outcome).Inc()
	metrics.FlowDuration.WithLabelValues(flow).Observe(end.Sub(start).Seconds())
}

func clockOrReal(c Clock) Clock {
	if c != nil {
		return c
	}
	return clock.RealClock{}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return io.Discard
}
