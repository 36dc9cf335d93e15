package metrics

import (
	"slices"
	"time"
)

// UsageStats summarizes the rolling window.
type UsageStats struct {
	TotalCalls          int           `json:"total_calls"`
	SuccessfulCalls     int           `json:"successful_calls"`
	FailedCalls         int           `json:"failed_calls"`
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	TotalTokens         int64         `json:"total_tokens"`
	TimeRange           TimeRange     `json:"time_range"`
}

// TimeRange is the span covered by the window at query time.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// BreakdownStats is the per-service or per-method slice of the window.
type BreakdownStats struct {
	Calls               int           `json:"calls"`
	Failures            int           `json:"failures"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	Tokens              int64         `json:"tokens"`
}

// ExtendedUsageStats adds latency percentiles and breakdowns.
type ExtendedUsageStats struct {
	UsageStats

	// Nearest-rank percentiles over the sorted window latencies.
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`

	PerService map[string]BreakdownStats `json:"per_service"`
	PerMethod  map[string]BreakdownStats `json:"per_method"`
}

// UsageStats computes the summary over the current window.
func (m *Monitor) UsageStats() UsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.now())
	return m.usageStatsLocked()
}

func (m *Monitor) usageStatsLocked() UsageStats {
	stats := UsageStats{TotalCalls: len(m.points)}
	if len(m.points) == 0 {
		return stats
	}

	var totalTime time.Duration
	var tokens int64
	for _, p := range m.points {
		if p.Success {
			stats.SuccessfulCalls++
		} else {
			stats.FailedCalls++
		}
		totalTime += p.ResponseTime
		tokens += int64(p.Tokens)
	}
	stats.SuccessRate = float64(stats.SuccessfulCalls) / float64(stats.TotalCalls)
	stats.AverageResponseTime = totalTime / time.Duration(stats.TotalCalls)
	stats.TotalTokens = tokens
	stats.TimeRange = TimeRange{
		From: m.points[0].Timestamp,
		To:   m.points[len(m.points)-1].Timestamp,
	}
	return stats
}

// ExtendedUsageStats computes the summary plus percentiles and
// per-service/per-method breakdowns.
func (m *Monitor) ExtendedUsageStats() ExtendedUsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.now())

	ext := ExtendedUsageStats{
		UsageStats: m.usageStatsLocked(),
		PerService: make(map[string]BreakdownStats),
		PerMethod:  make(map[string]BreakdownStats),
	}
	if len(m.points) == 0 {
		return ext
	}

	latencies := make([]time.Duration, len(m.points))
	services := make(map[string]*breakdownAcc)
	methods := make(map[string]*breakdownAcc)
	for i, p := range m.points {
		latencies[i] = p.ResponseTime
		accumulate(services, p.Service, p)
		accumulate(methods, p.Service+"."+p.Method, p)
	}
	slices.Sort(latencies)

	for name, acc := range services {
		ext.PerService[name] = acc.finalize()
	}
	for name, acc := range methods {
		ext.PerMethod[name] = acc.finalize()
	}
	ext.P50 = nearestRank(latencies, 50)
	ext.P95 = nearestRank(latencies, 95)
	ext.P99 = nearestRank(latencies, 99)
	return ext
}

type breakdownAcc struct {
	calls     int
	failures  int
	totalTime time.Duration
	tokens    int64
}

func accumulate(accs map[string]*breakdownAcc, key string, p DataPoint) {
	acc := accs[key]
	if acc == nil {
		acc = &breakdownAcc{}
		accs[key] = acc
	}
	acc.calls++
	if !p.Success {
		acc.failures++
	}
	acc.totalTime += p.ResponseTime
	acc.tokens += int64(p.Tokens)
}

func (a *breakdownAcc) finalize() BreakdownStats {
	return BreakdownStats{
		Calls:               a.calls,
		Failures:            a.failures,
		AverageResponseTime: a.totalTime / time.Duration(a.calls),
		Tokens:              a.tokens,
	}
}

// nearestRank returns the p-th percentile of sorted by the nearest-rank
// method: the value at rank ceil(p/100 * n).
func nearestRank(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
