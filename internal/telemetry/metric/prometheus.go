package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the sidecar exposes, backed by a private
// prometheus.Registry rather than the global default so tests can build
// independent instances.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	RetriesTotal          *prometheus.CounterVec
	PaddingResponsesTotal *prometheus.CounterVec

	BackendDialFailuresTotal *prometheus.CounterVec
	BackendConnectionsActive *prometheus.GaugeVec

	DNSCacheEntries        prometheus.Gauge
	DNSCacheRefreshesTotal prometheus.Counter

	MQLatencySeconds prometheus.Histogram
}

// NewRegistry creates a metrics registry and registers every metric plus
// the Go and process collectors on it.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshsidecar_requests_total",
			Help: "Total commands handled, by protocol, method, and outcome status.",
		}, []string{"protocol", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshsidecar_request_duration_seconds",
			Help:    "Time to complete a command round trip to a backend, by protocol and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol", "method"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshsidecar_retries_total",
			Help: "Commands redispatched to a different shard replica after a failed attempt.",
		}, []string{"protocol"}),
		PaddingResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshsidecar_padding_responses_total",
			Help: "Synthetic padding responses returned because no backend was reachable.",
		}, []string{"protocol"}),
		BackendDialFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshsidecar_backend_dial_failures_total",
			Help: "Backend connection attempts that failed, by backend kind.",
		}, []string{"backend"}),
		BackendConnectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshsidecar_backend_connections_active",
			Help: "Open connections currently held to backends, by backend kind.",
		}, []string{"backend"}),
		DNSCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshsidecar_dns_cache_entries",
			Help: "Hostnames currently resolved in the DNS cache.",
		}),
		DNSCacheRefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshsidecar_dns_cache_refreshes_total",
			Help: "DNS cache bucket refresh passes completed.",
		}),
		MQLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshsidecar_mq_enqueue_latency_seconds",
			Help:    "Latency recorded from a message queue VALUE response's embedded enqueue timestamp.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RetriesTotal,
		r.PaddingResponsesTotal,
		r.BackendDialFailuresTotal,
		r.BackendConnectionsActive,
		r.DNSCacheEntries,
		r.DNSCacheRefreshesTotal,
		r.MQLatencySeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide Registry, creating it on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the HTTP handler serving /metrics in Prometheus text
// format for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter for a completed command.
func (r *Registry) RecordRequest(protocol, method, status string) {
	r.RequestsTotal.WithLabelValues(protocol, method, status).Inc()
}

// ObserveRequestDuration records how long a command round trip took.
func (r *Registry) ObserveRequestDuration(protocol, method string, seconds float64) {
	r.RequestDuration.WithLabelValues(protocol, method).Observe(seconds)
}

// IncRetry counts one redispatch to an alternate replica.
func (r *Registry) IncRetry(protocol string) {
	r.RetriesTotal.WithLabelValues(protocol).Inc()
}

// IncPaddingResponse counts one synthetic padding response returned to a client.
func (r *Registry) IncPaddingResponse(protocol string) {
	r.PaddingResponsesTotal.WithLabelValues(protocol).Inc()
}

// IncBackendDialFailure counts one failed dial to a backend of the given kind.
func (r *Registry) IncBackendDialFailure(backend string) {
	r.BackendDialFailuresTotal.WithLabelValues(backend).Inc()
}

// SetBackendConnectionsActive reports the current open-connection count for a backend kind.
func (r *Registry) SetBackendConnectionsActive(backend string, n float64) {
	r.BackendConnectionsActive.WithLabelValues(backend).Set(n)
}

// SetDNSCacheEntries reports the current number of resolved hostnames.
func (r *Registry) SetDNSCacheEntries(n float64) {
	r.DNSCacheEntries.Set(n)
}

// IncDNSCacheRefresh counts one completed DNS cache refresh pass.
func (r *Registry) IncDNSCacheRefresh() {
	r.DNSCacheRefreshesTotal.Inc()
}

// Observe implements mq.LatencyRecorder, feeding queue enqueue-to-read
// latency samples extracted from VALUE response timestamps.
func (r *Registry) Observe(d time.Duration) {
	r.MQLatencySeconds.Observe(d.Seconds())
}
