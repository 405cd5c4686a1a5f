// Package metric provides Prometheus metrics for tokstash.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, lifecycle counters and the HTTP handler
//   - collector.go: collectors that read state at scrape time
//
// Metrics include:
//
//   - Token lifecycle counters (created, looked up, archived, extended)
//   - Request and command latency histograms per transport
//   - Rate limiter rejections
//   - Record counts for the in-memory backend
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
