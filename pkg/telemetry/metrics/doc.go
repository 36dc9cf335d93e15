// Package metrics provides the two observability surfaces of the
// gateway: the Monitor, an in-process rolling-window store feeding usage
// statistics and threshold alerts, and the Collector, the Prometheus
// registration point scraped via /metrics.
//
// The Monitor answers "what happened in the last N minutes" directly from
// memory; the Collector accumulates the same call stream into counters
// and histograms for external scraping. Both are fed from a single
// LogAPICall entry point.
package metrics
