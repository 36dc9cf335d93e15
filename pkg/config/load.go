package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads the configuration and applies environment
// variable overrides. Variables follow CALLISTO_SECTION_FIELD naming and
// always take precedence over the file.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CALLISTO_GATEWAY_LISTEN_ADDRESS"); val != "" {
		cfg.Gateway.ListenAddress = val
	}
	if val := os.Getenv("CALLISTO_GATEWAY_MOCK_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.MockMode = b
		}
	}

	if val := os.Getenv("CALLISTO_API_BASE_URL"); val != "" {
		cfg.API.BaseURL = val
	}
	if val := os.Getenv("CALLISTO_API_SECRET"); val != "" {
		cfg.API.Secret = val
	}
	if val := os.Getenv("CALLISTO_API_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.API.Timeout = d
		}
	}

	if val := os.Getenv("CALLISTO_RETRY_MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retry.MaxRetries = i
		}
	}
	if val := os.Getenv("CALLISTO_RETRY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Retry.Timeout = d
		}
	}

	if val := os.Getenv("CALLISTO_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_CACHE_MAX_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxSize = i
		}
	}
	if val := os.Getenv("CALLISTO_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if val := os.Getenv("CALLISTO_KEYPOOL_STRATEGY"); val != "" {
		cfg.Keypool.Strategy = val
	}
	if val := os.Getenv("CALLISTO_VAULT_MASTER_SECRET"); val != "" {
		cfg.Vault.MasterSecret = val
	}

	if val := os.Getenv("CALLISTO_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("CALLISTO_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}

	if val := os.Getenv("CALLISTO_RETENTION_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.Days = i
		}
	}

	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_MONITOR_TOKEN_QUOTA"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Telemetry.Monitor.TokenQuota = i
		}
	}
}
