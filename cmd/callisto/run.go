package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"halcyon-hq/callisto/pkg/cli"
	"halcyon-hq/callisto/pkg/client"
	"halcyon-hq/callisto/pkg/config"
	"halcyon-hq/callisto/pkg/genai"
	"halcyon-hq/callisto/pkg/keypool"
	"halcyon-hq/callisto/pkg/retention"
	"halcyon-hq/callisto/pkg/server"
	"halcyon-hq/callisto/pkg/storage"
	"halcyon-hq/callisto/pkg/telemetry/health"
	"halcyon-hq/callisto/pkg/telemetry/logging"
	"halcyon-hq/callisto/pkg/telemetry/metrics"
	"halcyon-hq/callisto/pkg/vault"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	mockMode      bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Callisto gateway",
	Long: `Start the Callisto gateway with the specified configuration.

The gateway initializes the credential vault, key pool, call monitor and
lifecycle manager, then serves the admin endpoints (health, status,
metrics) on the configured address until interrupted.

Examples:
  # Start with default config
  callisto run

  # Start with custom config
  callisto run --config /etc/callisto/config.yaml

  # Override listen address
  callisto run --listen 0.0.0.0:8385

  # Run against canned responses, no live API handle
  callisto run --mock

  # Validate config without starting
  callisto run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.mockMode, "mock", false, "force mock mode")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	// Pick up a local .env before reading the environment. Missing file
	// is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Gateway.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.mockMode {
		cfg.Gateway.MockMode = true
	}

	logLevel := new(slog.LevelVar)
	logger, err := logging.New(logging.Config{
		Level:          cfg.Telemetry.Logging.Level,
		Format:         cfg.Telemetry.Logging.Format,
		AddSource:      cfg.Telemetry.Logging.AddSource,
		RedactSecrets:  cfg.Telemetry.Logging.RedactSecrets,
		RedactPatterns: cfg.Telemetry.Logging.RedactPatterns,
		LevelVar:       logLevel,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	// Storage backend
	store, err := buildStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Printf("✓ Storage initialized (%s)\n", cfg.Storage.Backend)

	// Vault and key pool
	var pool *keypool.Pool
	if cfg.Vault.MasterSecret != "" {
		v, err := vault.New(cfg.Vault.MasterSecret)
		if err != nil {
			return cli.NewConfigError("vault.master_secret", err.Error())
		}
		pool = keypool.New(store, v)
		fmt.Println("✓ Credential vault unlocked")
	} else {
		logger.Warn("no vault master secret configured, key pool disabled")
	}

	// Metrics
	collector := metrics.NewCollector(metrics.CollectorConfig{
		Namespace: cfg.Telemetry.Metrics.Namespace,
		Subsystem: cfg.Telemetry.Metrics.Subsystem,
	}, nil)
	if pool != nil {
		pool.SetObserver(collector)
	}
	monitor := metrics.NewMonitor(buildMonitorConfig(cfg), collector, logger)
	monitor.SetAlertFunc(func(alert metrics.Alert) {
		logger.Warn("usage alert",
			"type", alert.Type,
			"message", alert.Message,
			"current_value", alert.CurrentValue,
			"threshold", alert.Threshold,
		)
	})

	// Lifecycle manager
	manager := client.NewManager(client.Options{
		MockMode:      cfg.Gateway.MockMode,
		DefaultSecret: cfg.API.Secret,
		ClientConfig: genai.Config{
			BaseURL:             cfg.API.BaseURL,
			Timeout:             cfg.API.Timeout,
			MaxIdleConns:        cfg.API.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.API.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.API.IdleConnTimeout,
		},
		Logger: logger,
	})
	defer manager.Reset()

	if cfg.Gateway.MockMode {
		fmt.Println("✓ Mock mode enabled, remote calls are short-circuited")
	} else if cfg.API.Secret != "" {
		if err := manager.Initialize(cmd.Context(), ""); err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ API handle initialized")
	} else {
		logger.Info("no default API secret configured, initialization deferred to first caller")
	}

	// Background tasks (retention, config watch) stop together on exit.
	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	if cfg.Retention.Enabled {
		pruner := retention.NewPruner(store, retention.Config{
			RetentionDays: cfg.Retention.Days,
			MaxRecords:    cfg.Retention.MaxRecords,
			Schedule:      cfg.Retention.Schedule,
		}, logger)
		scheduler := retention.NewScheduler(pruner, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
			if next := scheduler.NextRun(); next != nil {
				logger.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	// Configuration hot reload: the log level and alert thresholds are
	// safe to swap on a running gateway; everything else needs a restart.
	watcher, err := config.NewWatcher(cfgFile, 0, logger)
	if err != nil {
		logger.Warn("configuration watcher unavailable", "error", err)
	} else {
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) error {
				level, err := logging.ParseLevel(next.Telemetry.Logging.Level)
				if err != nil {
					return err
				}
				logLevel.Set(level)
				monitor.UpdateConfig(buildMonitorConfig(next))
				return nil
			})
			if err != nil {
				logger.Error("configuration watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Admin server with component readiness checks
	srv := server.NewServer(&cfg.Gateway, &cfg.Telemetry.Metrics, monitor, collector, manager, pool, logger)

	checker := health.New(0)
	checker.RegisterCheck("storage", func(ctx context.Context) error {
		_, err := store.CountCallRecords(ctx)
		return err
	})
	if !cfg.Gateway.MockMode && cfg.API.Secret != "" {
		checker.RegisterCheck("api_handle", func(ctx context.Context) error {
			if !manager.IsInitialized() {
				return fmt.Errorf("lifecycle manager not initialized")
			}
			return nil
		})
	}
	srv.SetHealthChecker(checker)

	serverCtx, cancelServer := context.WithCancel(context.Background())
	defer cancelServer()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(serverCtx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	fmt.Println()
	fmt.Printf("✓ Admin server listening on %s\n", cfg.Gateway.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Gateway.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Gateway.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancelServer()

		if err, ok := <-errChan; ok && err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Gateway stopped")
		return nil
	}
}

func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(sqliteConfig(cfg))
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// sqliteConfig starts from the backend defaults so WAL mode and the
// connection caps stay in force, overriding only what the file
// configures.
func sqliteConfig(cfg *config.Config) *storage.SQLiteConfig {
	sc := storage.DefaultSQLiteConfig()
	if cfg.Storage.SQLite.Path != "" {
		sc.Path = cfg.Storage.SQLite.Path
	}
	if cfg.Storage.SQLite.BusyTimeout > 0 {
		sc.BusyTimeout = cfg.Storage.SQLite.BusyTimeout
	}
	return sc
}

func buildMonitorConfig(cfg *config.Config) metrics.MonitorConfig {
	mc := metrics.DefaultMonitorConfig()
	if cfg.Telemetry.Monitor.Window > 0 {
		mc.Window = cfg.Telemetry.Monitor.Window
	}
	if cfg.Telemetry.Monitor.AlertCheckInterval > 0 {
		mc.AlertCheckInterval = cfg.Telemetry.Monitor.AlertCheckInterval
	}
	if cfg.Telemetry.Monitor.ErrorRateThreshold > 0 {
		mc.ErrorRateThreshold = cfg.Telemetry.Monitor.ErrorRateThreshold
	}
	if cfg.Telemetry.Monitor.AvgResponseTimeThreshold > 0 {
		mc.AvgResponseTimeThreshold = cfg.Telemetry.Monitor.AvgResponseTimeThreshold
	}
	mc.TokenQuota = cfg.Telemetry.Monitor.TokenQuota
	if cfg.Telemetry.Monitor.TokenUsageThreshold > 0 {
		mc.TokenUsageThreshold = cfg.Telemetry.Monitor.TokenUsageThreshold
	}
	return mc
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Callisto v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("gateway configuration",
		"listen_address", cfg.Gateway.ListenAddress,
		"mock_mode", cfg.Gateway.MockMode,
		"storage_backend", cfg.Storage.Backend,
		"keypool_strategy", cfg.Keypool.Strategy,
		"cache_enabled", cfg.Cache.Enabled,
		"retention_enabled", cfg.Retention.Enabled,
	)
}
