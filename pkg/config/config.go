// Package config defines the gateway configuration tree, its defaults
// and validation, YAML loading with environment overrides, and a
// debounced file watcher for live reloads.
package config

import (
	"time"

	"halcyon-hq/callisto/pkg/telemetry/logging"
)

// Config is the root configuration for the gateway.
type Config struct {
	// Gateway contains process-level settings.
	Gateway GatewayConfig `yaml:"gateway"`

	// API configures the remote generative AI endpoint.
	API APIConfig `yaml:"api"`

	// Retry configures the retry/timeout engine.
	Retry RetryConfig `yaml:"retry"`

	// Cache configures the response cache.
	Cache CacheConfig `yaml:"cache"`

	// Keypool configures credential rotation.
	Keypool KeypoolConfig `yaml:"keypool"`

	// Vault configures credential encryption.
	Vault VaultConfig `yaml:"vault"`

	// Storage configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// Sanitize configures payload sanitization for call records.
	Sanitize SanitizeConfig `yaml:"sanitize"`

	// Retention configures call record pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry configures logging, metrics and alerting.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains process-level settings.
type GatewayConfig struct {
	// ListenAddress is the host:port the admin/metrics server binds to.
	ListenAddress string `yaml:"listen_address"`

	// MockMode short-circuits all remote calls with canned responses.
	MockMode bool `yaml:"mock_mode"`

	// ReadTimeout bounds reading a request on the admin server.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response on the admin server.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit on the admin server.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// APIConfig configures the remote endpoint and handle.
type APIConfig struct {
	// BaseURL is the API endpoint root.
	BaseURL string `yaml:"base_url"`

	// Secret is the default API secret, used when no explicit secret is
	// passed at initialization. Usually supplied via environment.
	Secret string `yaml:"secret"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host pool size.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// RetryConfig configures the retry/timeout engine.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `yaml:"max_retries"`

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration `yaml:"max_delay"`

	// BackoffMultiplier scales consecutive delays.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// Timeout bounds each individual attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `yaml:"enabled"`

	// MaxSize is the entry capacity.
	MaxSize int `yaml:"max_size"`

	// TTL is the entry lifetime.
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is the background expiry sweep period.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// KeypoolConfig configures credential rotation.
type KeypoolConfig struct {
	// Strategy selects the rotation strategy: "priority", "round-robin",
	// "least-used" or "random".
	Strategy string `yaml:"strategy"`
}

// VaultConfig configures credential encryption.
type VaultConfig struct {
	// MasterSecret derives the encryption key. Supplied via environment
	// in production.
	MasterSecret string `yaml:"master_secret"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// Path is the database file location.
	Path string `yaml:"path"`

	// BusyTimeout is the lock contention wait.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SanitizeConfig configures payload sanitization.
type SanitizeConfig struct {
	// SummaryThreshold is the serialized size above which payloads are
	// summarized.
	SummaryThreshold int `yaml:"summary_threshold"`

	// PreviewLength is the preview kept in summaries.
	PreviewLength int `yaml:"preview_length"`
}

// RetentionConfig configures call record pruning.
type RetentionConfig struct {
	// Enabled turns scheduled pruning on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression.
	Schedule string `yaml:"schedule"`

	// Days is the retention horizon in days.
	Days int `yaml:"days"`

	// MaxRecords caps the table size regardless of age. Zero disables
	// the count-based prune.
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus exposition.
	Metrics MetricsConfig `yaml:"metrics"`

	// Monitor configures the rolling-window monitor and alerting.
	Monitor MonitorConfig `yaml:"monitor"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// RedactSecrets enables automatic secret redaction.
	RedactSecrets bool `yaml:"redact_secrets"`

	// RedactPatterns are custom redaction rules.
	RedactPatterns []logging.RedactPattern `yaml:"redact_patterns"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint path.
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name segment.
	Subsystem string `yaml:"subsystem"`
}

// MonitorConfig configures the rolling window and alert thresholds.
type MonitorConfig struct {
	// Window is the rolling retention horizon.
	Window time.Duration `yaml:"window"`

	// AlertCheckInterval spaces threshold evaluations.
	AlertCheckInterval time.Duration `yaml:"alert_check_interval"`

	// ErrorRateThreshold is the window error ratio that alerts.
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`

	// AvgResponseTimeThreshold is the rolling mean latency that alerts.
	AvgResponseTimeThreshold time.Duration `yaml:"avg_response_time_threshold"`

	// TokenQuota is the cumulative token budget. Zero disables.
	TokenQuota int64 `yaml:"token_quota"`

	// TokenUsageThreshold is the quota fraction that alerts.
	TokenUsageThreshold float64 `yaml:"token_usage_threshold"`
}
