// Package retry wraps remote operations with timeout discipline, failure
// classification and exponential backoff.
//
// This package is the single place in the repository deciding whether an
// error is retried or surfaced. Everything it surfaces is a
// StandardizedError carrying an explicit Retryable flag, so callers never
// re-classify. Operations passed to Do must be safe to invoke more than
// once; idempotency is the caller's responsibility.
//
// A timed-out attempt is abandoned, not cancelled: the attempt context is
// cancelled, but an operation that ignores it may keep consuming resources
// after Do has already moved on.
package retry
