package genai

import (
	"fmt"
	"time"
)

// APIError represents an error response from the remote service.
// It carries the HTTP status code so the retry engine can classify it.
type APIError struct {
	// Service is the logical service name the request targeted
	Service string

	// StatusCode is the HTTP status code of the response
	StatusCode int

	// Message is the error body returned by the service
	Message string

	// RetryAfter is the upstream retry-after hint, if the response
	// carried one (0 otherwise)
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("genai %q error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// RetryAfterHint returns the upstream retry-after duration.
func (e *APIError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// AuthError represents a rejected credential (HTTP 401 or 403).
type AuthError struct {
	// Service is the logical service name the request targeted
	Service string

	// StatusCode is 401 or 403
	StatusCode int

	// Message is the error body returned by the service
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("genai %q authentication failed (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *AuthError) HTTPStatus() int {
	return e.StatusCode
}

// ParseError represents a malformed response body.
type ParseError struct {
	// Service is the logical service name the request targeted
	Service string

	// RawResponse is the body that failed to parse
	RawResponse string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("genai %q response parse error: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
