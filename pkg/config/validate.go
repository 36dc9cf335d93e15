package config

import (
	"fmt"
	"net/url"
)

// validStrategies are the accepted keypool rotation strategies.
var validStrategies = map[string]bool{
	"priority":    true,
	"round-robin": true,
	"least-used":  true,
	"random":      true,
}

// Validate checks the configuration for inconsistencies. It is called
// after defaults are applied, so zero values mean explicit misconfiguration.
func Validate(cfg *Config) error {
	if cfg.API.BaseURL != "" {
		parsed, err := url.Parse(cfg.API.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("api.base_url %q is not a valid URL", cfg.API.BaseURL)
		}
	}

	if cfg.Retry.MaxRetries > 10 {
		return fmt.Errorf("retry.max_retries %d exceeds the maximum of 10", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		return fmt.Errorf("retry.max_delay %s is below retry.initial_delay %s",
			cfg.Retry.MaxDelay, cfg.Retry.InitialDelay)
	}

	if !validStrategies[cfg.Keypool.Strategy] {
		return fmt.Errorf("keypool.strategy %q is not one of priority, round-robin, least-used, random",
			cfg.Keypool.Strategy)
	}

	switch cfg.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend %q is not one of sqlite, memory", cfg.Storage.Backend)
	}

	if t := cfg.Telemetry.Monitor.ErrorRateThreshold; t < 0 || t > 1 {
		return fmt.Errorf("telemetry.monitor.error_rate_threshold %v must be in [0, 1]", t)
	}
	if t := cfg.Telemetry.Monitor.TokenUsageThreshold; t < 0 || t > 1 {
		return fmt.Errorf("telemetry.monitor.token_usage_threshold %v must be in [0, 1]", t)
	}

	if cfg.Sanitize.PreviewLength > cfg.Sanitize.SummaryThreshold {
		return fmt.Errorf("sanitize.preview_length %d exceeds sanitize.summary_threshold %d",
			cfg.Sanitize.PreviewLength, cfg.Sanitize.SummaryThreshold)
	}

	return nil
}
