// Package interceptor instruments remote API calls. Wrap decorates a
// call function so that every invocation is timed, assigned a request ID,
// persisted as a call record (pending at start, completed exactly once at
// the end) and forwarded to the metrics monitor. Parameters and responses
// are sanitized before persistence: secret-shaped values are masked and
// oversized payloads are reduced to a summary.
//
// The interceptor never swallows errors; the wrapped function's error is
// returned to the caller unchanged.
package interceptor
