package keypool

import (
	"errors"
	"fmt"
)

// ErrNoAvailableKey is returned when zero active credentials exist.
var ErrNoAvailableKey = errors.New("keypool: no available key")

// ValidationError represents a rejected credential before persistence.
type ValidationError struct {
	// Field is the name of the invalid field.
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("keypool validation error for field %q: %s", e.Field, e.Message)
}
