// Package telemetry groups the observability subpackages of the
// gateway.
//
//   - logging: structured slog logging with secret redaction
//   - metrics: rolling-window usage monitor, alerting and Prometheus
//     collection
//   - health: component health checks for the readiness probe
//
// Each subpackage stands alone; there is no shared telemetry state to
// initialize.
package telemetry
