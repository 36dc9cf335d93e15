package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"halcyon-hq/callisto/pkg/client"
	"halcyon-hq/callisto/pkg/config"
	"halcyon-hq/callisto/pkg/keypool"
	"halcyon-hq/callisto/pkg/telemetry/health"
	"halcyon-hq/callisto/pkg/telemetry/metrics"
)

// Server is the admin HTTP server.
type Server struct {
	config       *config.GatewayConfig
	metricsCfg   *config.MetricsConfig
	monitor      *metrics.Monitor
	collector    *metrics.Collector
	manager      *client.Manager
	pool         *keypool.Pool
	checker      *health.Checker
	logger       *slog.Logger
	httpServer   *http.Server
	startedAt    time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates an admin server. The pool may be nil, in which case
// the key listing endpoint is not registered.
func NewServer(cfg *config.GatewayConfig, metricsCfg *config.MetricsConfig, monitor *metrics.Monitor, collector *metrics.Collector, manager *client.Manager, pool *keypool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		metricsCfg:   metricsCfg,
		monitor:      monitor,
		collector:    collector,
		manager:      manager,
		pool:         pool,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// SetHealthChecker installs a component checker backing the readiness
// probe. Without one, readiness falls back to lifecycle manager state.
func (s *Server) SetHealthChecker(c *health.Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checker = c
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics/window", s.handleWindowExport)

	if s.metricsCfg.Enabled && s.collector != nil {
		path := s.metricsCfg.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	}

	if s.pool != nil {
		mux.HandleFunc("GET /keys", s.handleKeys)
	}

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness. With a checker installed the
// aggregated component status drives the verdict; otherwise a mock-mode
// or initialized lifecycle manager counts as ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checker := s.checker
	s.mu.RUnlock()

	if checker != nil {
		status := checker.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
		return
	}

	if s.manager == nil || s.manager.IsMockMode() || s.manager.IsInitialized() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

type statusResponse struct {
	Status        string                     `json:"status"`
	UptimeSeconds float64                    `json:"uptime_seconds"`
	MockMode      bool                       `json:"mock_mode"`
	Initialized   bool                       `json:"initialized"`
	Usage         metrics.ExtendedUsageStats `json:"usage"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.startedAt
	s.mu.RUnlock()

	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(started).Seconds(),
	}
	if s.manager != nil {
		resp.MockMode = s.manager.IsMockMode()
		resp.Initialized = s.manager.IsInitialized()
	}
	if s.monitor != nil {
		resp.Usage = s.monitor.ExtendedUsageStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWindowExport(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		http.Error(w, "monitor not configured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.monitor.ExportMetrics())
}

// handleKeys lists pool credentials. Secrets appear masked only.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.pool.ListKeys(r.Context())
	if err != nil {
		s.logger.Error("key listing failed", "error", err)
		http.Error(w, "key listing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
