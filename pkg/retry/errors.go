package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Error codes carried by StandardizedError.
const (
	CodeTimeout         = "TIMEOUT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
	CodeConnectionReset = "CONNECTION_RESET"
	CodePermanent       = "PERMANENT"
)

// StandardizedError is the single error shape surfaced by the retry engine.
// Retryable records the classification decision explicitly so callers never
// re-derive it from the cause chain.
type StandardizedError struct {
	// Message is the human-readable failure description.
	Message string

	// Code is one of the Code* constants.
	Code string

	// Status is the HTTP status code, when one applies (0 otherwise).
	Status int

	// Retryable reports whether the engine classified the failure as
	// transient.
	Retryable bool

	// Cause is the original error.
	Cause error
}

// Error implements the error interface.
func (e *StandardizedError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the original error for error chain support.
func (e *StandardizedError) Unwrap() error {
	return e.Cause
}

// StatusCarrier is implemented by errors that carry an HTTP status code.
// The genai client's typed errors implement it.
type StatusCarrier interface {
	HTTPStatus() int
}

// RetryAfterCarrier is implemented by errors that carry an upstream
// retry-after hint (e.g. a 429 response's Retry-After header).
type RetryAfterCarrier interface {
	RetryAfterHint() time.Duration
}

// Retryable is implemented by errors that pre-tag their own retryability.
type Retryable interface {
	Retryable() bool
}

// Standardize classifies err and converts it to a StandardizedError.
// An error that already is one passes through unchanged.
//
// Classification: HTTP 429 and [500,600) are retryable, as are timeouts and
// connection resets; every other failure is permanent.
func Standardize(err error) *StandardizedError {
	var std *StandardizedError
	if errors.As(err, &std) {
		return std
	}

	status := httpStatus(err)

	switch {
	case status == http.StatusTooManyRequests:
		return &StandardizedError{
			Message:   err.Error(),
			Code:      CodeRateLimited,
			Status:    status,
			Retryable: true,
			Cause:     err,
		}
	case status >= 500 && status < 600:
		return &StandardizedError{
			Message:   err.Error(),
			Code:      CodeServerError,
			Status:    status,
			Retryable: true,
			Cause:     err,
		}
	case isTimeout(err):
		return &StandardizedError{
			Message:   err.Error(),
			Code:      CodeTimeout,
			Retryable: true,
			Cause:     err,
		}
	case isConnectionReset(err):
		return &StandardizedError{
			Message:   err.Error(),
			Code:      CodeConnectionReset,
			Retryable: true,
			Cause:     err,
		}
	}

	var tagged Retryable
	if errors.As(err, &tagged) && tagged.Retryable() {
		return &StandardizedError{
			Message:   err.Error(),
			Code:      CodeServerError,
			Status:    status,
			Retryable: true,
			Cause:     err,
		}
	}

	return &StandardizedError{
		Message:   err.Error(),
		Code:      CodePermanent,
		Status:    status,
		Retryable: false,
		Cause:     err,
	}
}

// IsRetryable reports the classification of err without converting it.
func IsRetryable(err error) bool {
	return Standardize(err).Retryable
}

// httpStatus extracts an HTTP status code from the error chain, 0 if none.
func httpStatus(err error) int {
	var carrier StatusCarrier
	if errors.As(err, &carrier) {
		return carrier.HTTPStatus()
	}
	return 0
}

// retryAfterHint extracts an upstream retry-after hint, 0 if none.
func retryAfterHint(err error) time.Duration {
	var carrier RetryAfterCarrier
	if errors.As(err, &carrier) {
		return carrier.RetryAfterHint()
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
