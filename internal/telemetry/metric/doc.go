// Package metric provides Prometheus metrics for the mesh sidecar.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: a custom Collector exposing dnscache/topology gauges
//
// Metrics cover:
//
//   - per-protocol request counts and latency histograms
//   - retry and padding-response counts (backend unavailability)
//   - backend dial failures and active connection counts
//   - DNS cache population and refresh churn
//
// Metrics are exposed at /metrics in Prometheus text format.
package metric
