// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for the embedder.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "embedder"

// Resolve outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidURL    = "invalid_url"
	OutcomeStatus        = "upstream_status"
	OutcomeProviderError = "provider_error"
	OutcomeMalformed     = "malformed_payload"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeTransport     = "transport_error"
)

// Metrics holds every collector the service exports. Each instance owns its
// registry so tests and CLI runs never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	ResolveTotal    *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	AnchorsRendered *prometheus.CounterVec
	BreakerState    prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Embed API lookups by provider and outcome",
		}, []string{"provider", "outcome"}),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Embed API lookup latency including retries",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Resolved-embed cache lookups by result (hit, miss)",
		}, []string{"result"}),
		AnchorsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_rendered_total",
			Help:      "Anchors processed by render kind (gist, instagram, html, skipped)",
		}, []string{"kind"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Embed API circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.ResolveTotal,
		m.ResolveDuration,
		m.CacheLookups,
		m.AnchorsRendered,
		m.BreakerState,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResolve records one embed API lookup.
func (m *Metrics) ObserveResolve(providerLabel, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(providerLabel, outcome).Inc()
	m.ResolveDuration.WithLabelValues(providerLabel).Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveAnchor records how one anchor was rendered.
func (m *Metrics) ObserveAnchor(kind string) {
	if m == nil {
		return
	}
	m.AnchorsRendered.WithLabelValues(kind).Inc()
}

// SetBreakerState publishes the breaker state as a gauge value.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

// GinMiddleware records request counts and latency by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
