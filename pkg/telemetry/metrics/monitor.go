package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// Default monitor parameters.
const (
	DefaultWindow                   = 5 * time.Minute
	DefaultAlertCheckInterval       = 30 * time.Second
	DefaultErrorRateThreshold       = 0.25
	DefaultAvgResponseTimeThreshold = 10 * time.Second
	DefaultTokenUsageThreshold      = 0.8

	// MinAlertSamples is the minimum window population before the error
	// rate check fires.
	MinAlertSamples = 10
)

// Alert types.
const (
	AlertErrorRate    = "error_rate"
	AlertResponseTime = "response_time"
	AlertTokenQuota   = "token_quota"
)

// DataPoint is one observed API call.
type DataPoint struct {
	Timestamp    time.Time
	Service      string
	Method       string
	ResponseTime time.Duration
	Success      bool
	Tokens       int
	ErrorType    string
}

// Alert describes one threshold breach.
type Alert struct {
	// Type is one of the Alert* constants
	Type string

	// Message is the human-readable description
	Message string

	// CurrentValue is the observed value that breached
	CurrentValue float64

	// Threshold is the configured limit
	Threshold float64

	// Details carries supplementary values (sample counts, quotas)
	Details map[string]any
}

// AlertFunc receives threshold breaches. It runs on its own goroutine;
// panics are recovered and logged, never propagated to callers.
type AlertFunc func(Alert)

// MonitorConfig configures the rolling-window monitor.
type MonitorConfig struct {
	// Window is the rolling retention horizon for data points.
	Window time.Duration

	// AlertCheckInterval is the minimum spacing between threshold
	// evaluations.
	AlertCheckInterval time.Duration

	// ErrorRateThreshold is the window error ratio (0..1) above which
	// an alert fires. Zero disables the check.
	ErrorRateThreshold float64

	// AvgResponseTimeThreshold is the rolling mean latency above which
	// an alert fires. Zero disables the check.
	AvgResponseTimeThreshold time.Duration

	// TokenQuota is the cumulative token budget. Zero disables the
	// quota check.
	TokenQuota int64

	// TokenUsageThreshold is the quota fraction (0..1) at which the
	// quota alert fires.
	TokenUsageThreshold float64
}

// DefaultMonitorConfig returns the standard monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Window:                   DefaultWindow,
		AlertCheckInterval:       DefaultAlertCheckInterval,
		ErrorRateThreshold:       DefaultErrorRateThreshold,
		AvgResponseTimeThreshold: DefaultAvgResponseTimeThreshold,
		TokenUsageThreshold:      DefaultTokenUsageThreshold,
	}
}

// Monitor keeps a rolling window of call observations, serves usage
// statistics over it and fires alerts on threshold breaches. All methods
// are safe for concurrent use; the alert callback never blocks callers.
type Monitor struct {
	mu     sync.Mutex
	config MonitorConfig
	logger *slog.Logger

	// points holds the rolling window, oldest first. Pruned on every
	// insert so it always reflects only the last Window.
	points []DataPoint

	// totalTokens accumulates over the monitor's lifetime for the
	// quota check.
	totalTokens int64

	lastAlertCheck time.Time
	onAlert        AlertFunc

	// collector, when set, receives every observation for Prometheus
	// exposition.
	collector *Collector

	// now is swappable for tests.
	now func() time.Time
}

// NewMonitor creates a monitor. collector may be nil.
func NewMonitor(config MonitorConfig, collector *Collector, logger *slog.Logger) *Monitor {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.AlertCheckInterval <= 0 {
		config.AlertCheckInterval = DefaultAlertCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		config:    config,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

// UpdateConfig swaps the window and alert thresholds at runtime, for
// configuration hot reload. Unset fields fall back like in NewMonitor.
func (m *Monitor) UpdateConfig(config MonitorConfig) {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.AlertCheckInterval <= 0 {
		config.AlertCheckInterval = DefaultAlertCheckInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// SetAlertFunc registers the alert callback, replacing any previous one.
func (m *Monitor) SetAlertFunc(fn AlertFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = fn
}

// LogAPICall appends one observation, prunes the window, and evaluates
// alert thresholds at most once per AlertCheckInterval.
func (m *Monitor) LogAPICall(point DataPoint) {
	if point.Timestamp.IsZero() {
		point.Timestamp = m.now()
	}

	var alerts []Alert
	m.mu.Lock()
	m.points = append(m.points, point)
	m.totalTokens += int64(point.Tokens)
	m.prune(point.Timestamp)

	if point.Timestamp.Sub(m.lastAlertCheck) >= m.config.AlertCheckInterval {
		m.lastAlertCheck = point.Timestamp
		alerts = m.evaluate()
	}
	onAlert := m.onAlert
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.RecordCall(point.Service, point.Method, point.Success, point.ResponseTime, point.Tokens)
	}

	for _, alert := range alerts {
		m.logger.Warn("metric threshold breached",
			"type", alert.Type,
			"message", alert.Message,
			"current", alert.CurrentValue,
			"threshold", alert.Threshold,
		)
		if onAlert != nil {
			go m.fire(onAlert, alert)
		}
	}
}

// fire runs the callback with panic isolation.
func (m *Monitor) fire(fn AlertFunc, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("alert callback panicked", "type", alert.Type, "panic", r)
		}
	}()
	fn(alert)
}

// prune drops points older than the window. Callers hold mu.
func (m *Monitor) prune(now time.Time) {
	cutoff := now.Add(-m.config.Window)
	idx := 0
	for idx < len(m.points) && m.points[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		m.points = append(m.points[:0], m.points[idx:]...)
	}
}

// evaluate runs the threshold checks over the current window. Callers
// hold mu.
func (m *Monitor) evaluate() []Alert {
	var alerts []Alert

	if m.config.ErrorRateThreshold > 0 && len(m.points) >= MinAlertSamples {
		failures := 0
		for _, p := range m.points {
			if !p.Success {
				failures++
			}
		}
		rate := float64(failures) / float64(len(m.points))
		if rate > m.config.ErrorRateThreshold {
			alerts = append(alerts, Alert{
				Type:         AlertErrorRate,
				Message:      "window error rate above threshold",
				CurrentValue: rate,
				Threshold:    m.config.ErrorRateThreshold,
				Details: map[string]any{
					"failures": failures,
					"samples":  len(m.points),
				},
			})
		}
	}

	if m.config.AvgResponseTimeThreshold > 0 && len(m.points) > 0 {
		var total time.Duration
		for _, p := range m.points {
			total += p.ResponseTime
		}
		avg := total / time.Duration(len(m.points))
		if avg > m.config.AvgResponseTimeThreshold {
			alerts = append(alerts, Alert{
				Type:         AlertResponseTime,
				Message:      "rolling average response time above threshold",
				CurrentValue: avg.Seconds(),
				Threshold:    m.config.AvgResponseTimeThreshold.Seconds(),
				Details: map[string]any{
					"samples": len(m.points),
				},
			})
		}
	}

	if m.config.TokenQuota > 0 {
		limit := float64(m.config.TokenQuota) * m.config.TokenUsageThreshold
		if float64(m.totalTokens) >= limit {
			alerts = append(alerts, Alert{
				Type:         AlertTokenQuota,
				Message:      "cumulative token usage approaching quota",
				CurrentValue: float64(m.totalTokens),
				Threshold:    limit,
				Details: map[string]any{
					"quota": m.config.TokenQuota,
				},
			})
		}
	}

	return alerts
}
