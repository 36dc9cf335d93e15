package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"halcyon-hq/callisto/pkg/genai"
)

// MinSecretLength is the minimum accepted API secret length.
const MinSecretLength = 16

// Manager states.
const (
	StateUninitialized = "uninitialized"
	StateInitialized   = "initialized"
)

// Options configures a Manager.
type Options struct {
	// MockMode short-circuits initialization: no secret is required and
	// no live handle is ever constructed.
	MockMode bool

	// DefaultSecret is the fallback secret used when Initialize is
	// called without an explicit one (typically from config/env).
	DefaultSecret string

	// ClientConfig configures the live handle.
	ClientConfig genai.Config

	// Logger receives lifecycle events. Nil selects slog.Default.
	Logger *slog.Logger
}

// Manager owns the live API handle. All methods are safe for concurrent
// use.
type Manager struct {
	mu     sync.RWMutex
	opts   Options
	state  string
	handle *genai.Client
	logger *slog.Logger
}

// NewManager creates an uninitialized manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:   opts,
		state:  StateUninitialized,
		logger: logger,
	}
}

// Initialize transitions the manager to the initialized state. It is a
// no-op when already initialized. In mock mode no secret is validated and
// no handle is constructed. Otherwise the secret resolves as: explicit
// argument first, then the configured default; a missing, blank or
// too-short secret is a ConfigError.
func (m *Manager) Initialize(ctx context.Context, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateInitialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.opts.MockMode {
		m.state = StateInitialized
		m.logger.Info("client manager initialized", "mode", "mock")
		return nil
	}

	resolved := strings.TrimSpace(secret)
	if resolved == "" {
		resolved = strings.TrimSpace(m.opts.DefaultSecret)
	}
	if resolved == "" {
		return &ConfigError{Field: "api_secret", Message: "missing or blank"}
	}
	if len(resolved) < MinSecretLength {
		return &ConfigError{Field: "api_secret", Message: "shorter than minimum length"}
	}

	m.handle = genai.NewClient(m.opts.ClientConfig, resolved, m.logger)
	m.state = StateInitialized
	m.logger.Info("client manager initialized", "mode", "live")
	return nil
}

// Client returns the live handle. It is a StateError in mock mode or
// before initialization.
func (m *Manager) Client() (*genai.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.opts.MockMode {
		return nil, &StateError{State: m.state, Message: "live handle unavailable in mock mode"}
	}
	if m.state != StateInitialized {
		return nil, &StateError{State: m.state, Message: "manager not initialized"}
	}
	return m.handle, nil
}

// Generator returns the generator appropriate to the mode: the live
// handle, or a deterministic mock in mock mode.
func (m *Manager) Generator() (genai.Generator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateInitialized {
		return nil, &StateError{State: m.state, Message: "manager not initialized"}
	}
	if m.opts.MockMode {
		return genai.NewMockClient(), nil
	}
	return m.handle, nil
}

// IsMockMode reports whether the manager runs in mock mode.
func (m *Manager) IsMockMode() bool {
	return m.opts.MockMode
}

// IsInitialized reports whether Initialize has completed.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateInitialized
}

// Reset clears the handle and returns to the uninitialized state. It is
// idempotent.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	if m.state != StateUninitialized {
		m.state = StateUninitialized
		m.logger.Info("client manager reset")
	}
}
