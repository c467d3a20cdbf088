// Package metrics defines Prometheus metrics for tokenctl login flows,
// covering token endpoint requests, device polling and flow outcomes.
package metrics
