package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"halcyon-hq/callisto/pkg/client"
	"halcyon-hq/callisto/pkg/config"
	"halcyon-hq/callisto/pkg/keypool"
	"halcyon-hq/callisto/pkg/storage"
	"halcyon-hq/callisto/pkg/telemetry/health"
	"halcyon-hq/callisto/pkg/telemetry/metrics"
	"halcyon-hq/callisto/pkg/vault"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestServer(t *testing.T, mockMode bool) *Server {
	t.Helper()

	gatewayCfg := &config.GatewayConfig{
		ListenAddress:   "127.0.0.1:0",
		MockMode:        mockMode,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}
	metricsCfg := &config.MetricsConfig{Enabled: true, Path: "/metrics"}

	collector := metrics.NewCollector(metrics.CollectorConfig{}, nil)
	monitor := metrics.NewMonitor(metrics.DefaultMonitorConfig(), collector, newTestLogger())

	v, err := vault.New("unit-test-master-secret-0123456789")
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	pool := keypool.New(storage.NewMemoryStore(), v)

	manager := client.NewManager(client.Options{
		MockMode: mockMode,
		Logger:   newTestLogger(),
	})

	return NewServer(gatewayCfg, metricsCfg, monitor, collector, manager, pool, newTestLogger())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestServer_Ready(t *testing.T) {
	t.Run("mock mode is always ready", func(t *testing.T) {
		srv := newTestServer(t, true)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("live mode not ready before initialization", func(t *testing.T) {
		srv := newTestServer(t, false)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("checker verdict drives readiness", func(t *testing.T) {
		srv := newTestServer(t, true)
		checker := health.New(time.Second)
		checker.RegisterCheck("storage", func(ctx context.Context) error {
			return errors.New("database is locked")
		})
		srv.SetHealthChecker(checker)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		var status health.Status
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if status.Checks["storage"].Status != "unhealthy" {
			t.Errorf("storage check = %q, want unhealthy", status.Checks["storage"].Status)
		}
	})
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t, true)
	srv.monitor.LogAPICall(metrics.DataPoint{
		Timestamp:    time.Now(),
		Service:      "genai",
		Method:       "generateContent",
		ResponseTime: 120 * time.Millisecond,
		Success:      true,
		Tokens:       42,
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.MockMode {
		t.Error("MockMode = false, want true")
	}
	if body.Usage.TotalCalls != 1 {
		t.Errorf("TotalCalls = %d, want 1", body.Usage.TotalCalls)
	}
}

func TestServer_WindowExport(t *testing.T) {
	srv := newTestServer(t, true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/window", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "callisto_window_calls_total") {
		t.Errorf("export missing window metrics:\n%s", rec.Body.String())
	}
}

func TestServer_PrometheusEndpoint(t *testing.T) {
	srv := newTestServer(t, true)
	srv.collector.RecordCall("genai", "generateContent", true, 100*time.Millisecond, 42)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "halcyon_callisto_calls_total") {
		t.Errorf("scrape output missing collector metrics:\n%s", rec.Body.String())
	}
}

func TestServer_Keys(t *testing.T) {
	srv := newTestServer(t, true)
	ctx := context.Background()

	secret := "AIzaTestSecret0123456789abcdefgh"
	if _, err := srv.pool.AddKey(ctx, "primary", secret, 1); err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/keys", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if strings.Contains(body, secret) {
		t.Error("response contains the plaintext secret")
	}
	if !strings.Contains(body, "primary") {
		t.Errorf("response missing key name:\n%s", body)
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Count != 1 {
		t.Errorf("count = %d, want 1", parsed.Count)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := newTestServer(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Fatal("server did not start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	if srv.IsRunning() {
		t.Error("IsRunning = true after shutdown")
	}
}
