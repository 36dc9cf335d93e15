package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CollectorConfig configures the Prometheus metric names and buckets.
type CollectorConfig struct {
	// Namespace is the metric name prefix.
	Namespace string

	// Subsystem is the second metric name segment.
	Subsystem string

	// CallDurationBuckets are the histogram buckets for call latency
	// in seconds.
	CallDurationBuckets []float64

	// TokenCountBuckets are the histogram buckets for per-call token
	// counts.
	TokenCountBuckets []float64
}

// Collector registers and feeds the gateway's Prometheus metrics. All
// metrics live on a private registry so tests and embedders never collide
// with the global default.
type Collector struct {
	config   CollectorConfig
	registry *prometheus.Registry

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
	callTokens   *prometheus.HistogramVec

	cacheOps  *prometheus.CounterVec
	cacheSize prometheus.Gauge

	keySelections *prometheus.CounterVec
	keyUsage      *prometheus.CounterVec
}

// NewCollector creates a collector on the given registry. A nil registry
// allocates a private one.
func NewCollector(cfg CollectorConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "halcyon"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "callisto"
	}
	if len(cfg.CallDurationBuckets) == 0 {
		// Generative calls run 100ms to tens of seconds.
		cfg.CallDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	if len(cfg.TokenCountBuckets) == 0 {
		cfg.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "calls_total",
				Help:      "Total number of instrumented API calls",
			},
			[]string{"service", "method", "status"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "call_duration_seconds",
				Help:      "Duration of instrumented API calls in seconds",
				Buckets:   cfg.CallDurationBuckets,
			},
			[]string{"service", "method"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total number of tokens consumed",
			},
			[]string{"service", "method"},
		),

		callTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "call_tokens",
				Help:      "Per-call token count distribution",
				Buckets:   cfg.TokenCountBuckets,
			},
			[]string{"service"},
		),

		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_operations_total",
				Help:      "Cache operations by outcome",
			},
			[]string{"outcome"},
		),

		cacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of cache entries",
			},
		),

		keySelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "key_selections_total",
				Help:      "Credential selections by rotation strategy",
			},
			[]string{"strategy"},
		),

		keyUsage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "key_usage_total",
				Help:      "Credential usage recordings by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.callsTotal,
		c.callDuration,
		c.tokensTotal,
		c.callTokens,
		c.cacheOps,
		c.cacheSize,
		c.keySelections,
		c.keyUsage,
	)

	return c
}

// RecordCall records one completed API call.
func (c *Collector) RecordCall(service, method string, success bool, duration time.Duration, tokens int) {
	status := "success"
	if !success {
		status = "error"
	}
	c.callsTotal.WithLabelValues(service, method, status).Inc()
	c.callDuration.WithLabelValues(service, method).Observe(duration.Seconds())
	if tokens > 0 {
		c.tokensTotal.WithLabelValues(service, method).Add(float64(tokens))
		c.callTokens.WithLabelValues(service).Observe(float64(tokens))
	}
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit() {
	c.cacheOps.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss() {
	c.cacheOps.WithLabelValues("miss").Inc()
}

// RecordCacheEviction records a capacity eviction.
func (c *Collector) RecordCacheEviction() {
	c.cacheOps.WithLabelValues("eviction").Inc()
}

// UpdateCacheSize sets the current cache entry count.
func (c *Collector) UpdateCacheSize(size int) {
	c.cacheSize.Set(float64(size))
}

// RecordKeySelection records one credential selection.
func (c *Collector) RecordKeySelection(strategy string) {
	c.keySelections.WithLabelValues(strategy).Inc()
}

// RecordKeyUsage records one credential usage outcome.
func (c *Collector) RecordKeyUsage(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.keyUsage.WithLabelValues(result).Inc()
}

// Registry returns the Prometheus registry backing this collector, for
// promhttp exposition:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
