package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// ExportMetrics renders the rolling window as Prometheus-style
// plain-text exposition. Each metric group carries its # HELP and # TYPE
// header lines; groups are separated by a blank line.
func (m *Monitor) ExportMetrics() string {
	ext := m.ExtendedUsageStats()

	var b strings.Builder

	b.WriteString("# HELP callisto_window_calls_total API calls observed in the rolling window\n")
	b.WriteString("# TYPE callisto_window_calls_total gauge\n")
	fmt.Fprintf(&b, "callisto_window_calls_total{status=\"success\"} %d\n", ext.SuccessfulCalls)
	fmt.Fprintf(&b, "callisto_window_calls_total{status=\"error\"} %d\n", ext.FailedCalls)
	b.WriteString("\n")

	b.WriteString("# HELP callisto_window_success_rate Fraction of successful calls in the window\n")
	b.WriteString("# TYPE callisto_window_success_rate gauge\n")
	fmt.Fprintf(&b, "callisto_window_success_rate %s\n", formatFloat(ext.SuccessRate))
	b.WriteString("\n")

	b.WriteString("# HELP callisto_window_response_time_seconds Response time over the window\n")
	b.WriteString("# TYPE callisto_window_response_time_seconds gauge\n")
	fmt.Fprintf(&b, "callisto_window_response_time_seconds{stat=\"avg\"} %s\n", formatFloat(ext.AverageResponseTime.Seconds()))
	fmt.Fprintf(&b, "callisto_window_response_time_seconds{stat=\"p50\"} %s\n", formatFloat(ext.P50.Seconds()))
	fmt.Fprintf(&b, "callisto_window_response_time_seconds{stat=\"p95\"} %s\n", formatFloat(ext.P95.Seconds()))
	fmt.Fprintf(&b, "callisto_window_response_time_seconds{stat=\"p99\"} %s\n", formatFloat(ext.P99.Seconds()))
	b.WriteString("\n")

	b.WriteString("# HELP callisto_window_tokens_total Tokens consumed in the window\n")
	b.WriteString("# TYPE callisto_window_tokens_total gauge\n")
	fmt.Fprintf(&b, "callisto_window_tokens_total %d\n", ext.TotalTokens)
	b.WriteString("\n")

	b.WriteString("# HELP callisto_window_service_calls_total Calls per service in the window\n")
	b.WriteString("# TYPE callisto_window_service_calls_total gauge\n")
	for _, name := range sortedKeys(ext.PerService) {
		fmt.Fprintf(&b, "callisto_window_service_calls_total{service=%q} %d\n", name, ext.PerService[name].Calls)
	}

	return b.String()
}

func sortedKeys(m map[string]BreakdownStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", f), "0"), ".")
}
