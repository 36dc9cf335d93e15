package client

import "fmt"

// ConfigError represents a missing or invalid configuration value that
// prevents initialization.
type ConfigError struct {
	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %q: %s", e.Field, e.Message)
}

// StateError represents a call that is invalid in the manager's current
// state, e.g. requesting the live handle before initialization or while
// in mock mode.
type StateError struct {
	// State is the manager state at the time of the call
	State string

	// Message describes why the call is invalid
	Message string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state %q: %s", e.State, e.Message)
}
