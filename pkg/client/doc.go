// Package client manages the lifecycle of the live remote API handle.
// A Manager starts uninitialized, transitions to initialized exactly once
// per lifecycle, and hands out the handle only when it is safe to use.
// In mock mode the manager never constructs a live handle and callers are
// served deterministic canned responses instead.
package client
