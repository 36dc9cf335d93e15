package config

import "time"

// Default values applied to unset fields.
const (
	DefaultListenAddress   = "127.0.0.1:8385"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPITimeout          = 60 * time.Second
	DefaultMaxIdleConns        = 10
	DefaultMaxIdleConnsPerHost = 5
	DefaultIdleConnTimeout     = 90 * time.Second

	DefaultCacheMaxSize       = 100
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheSweepInterval = time.Minute

	DefaultSQLitePath        = "callisto.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second

	DefaultRetentionSchedule = "0 3 * * *"
	DefaultRetentionDays     = 30

	DefaultMetricsPath = "/metrics"
)

// ApplyDefaults fills unset fields with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Gateway.ListenAddress == "" {
		cfg.Gateway.ListenAddress = DefaultListenAddress
	}
	if cfg.Gateway.ReadTimeout <= 0 {
		cfg.Gateway.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Gateway.WriteTimeout <= 0 {
		cfg.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Gateway.IdleTimeout <= 0 {
		cfg.Gateway.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Gateway.ShutdownTimeout <= 0 {
		cfg.Gateway.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.API.MaxIdleConns <= 0 {
		cfg.API.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.API.MaxIdleConnsPerHost <= 0 {
		cfg.API.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.API.IdleConnTimeout <= 0 {
		cfg.API.IdleConnTimeout = DefaultIdleConnTimeout
	}

	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = time.Second
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 32 * time.Second
	}
	if cfg.Retry.BackoffMultiplier <= 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}
	if cfg.Retry.Timeout <= 0 {
		cfg.Retry.Timeout = 30 * time.Second
	}

	if cfg.Cache.MaxSize <= 0 {
		cfg.Cache.MaxSize = DefaultCacheMaxSize
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.SweepInterval <= 0 {
		cfg.Cache.SweepInterval = DefaultCacheSweepInterval
	}

	if cfg.Keypool.Strategy == "" {
		cfg.Keypool.Strategy = "priority"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout <= 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Sanitize.SummaryThreshold <= 0 {
		cfg.Sanitize.SummaryThreshold = 1000
	}
	if cfg.Sanitize.PreviewLength <= 0 {
		cfg.Sanitize.PreviewLength = 200
	}

	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Retention.Days <= 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Monitor.Window <= 0 {
		cfg.Telemetry.Monitor.Window = 5 * time.Minute
	}
	if cfg.Telemetry.Monitor.AlertCheckInterval <= 0 {
		cfg.Telemetry.Monitor.AlertCheckInterval = 30 * time.Second
	}
	if cfg.Telemetry.Monitor.ErrorRateThreshold <= 0 {
		cfg.Telemetry.Monitor.ErrorRateThreshold = 0.25
	}
	if cfg.Telemetry.Monitor.AvgResponseTimeThreshold <= 0 {
		cfg.Telemetry.Monitor.AvgResponseTimeThreshold = 10 * time.Second
	}
	if cfg.Telemetry.Monitor.TokenUsageThreshold <= 0 {
		cfg.Telemetry.Monitor.TokenUsageThreshold = 0.8
	}
}
