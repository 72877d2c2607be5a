// Package metric provides Prometheus metrics for minikv.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, command metrics and HTTP handler
//   - collector.go: collector reading store and replication state
//
// Metrics include:
//
//   - Command counts and latency histograms
//   - Connected clients and replicas
//   - Replication offset and propagated bytes
//   - Key count
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
