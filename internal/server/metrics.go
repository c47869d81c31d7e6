package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/kol-feed-api/internal/circuitbreaker"
	"github.com/yourorg/kol-feed-api/internal/types"
)

// Metrics holds the Prometheus collectors of one server. Collectors live on
// their own registry so several servers can coexist in one process.
type Metrics struct {
	registry       *prometheus.Registry
	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
}

// NewMetrics creates and registers the server metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kolfeed_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kolfeed_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kolfeed_cache_lookups_total",
				Help: "Cache lookups by operation and result",
			},
			[]string{"operation", "result"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kolfeed_upstream_errors_total",
				Help: "Total number of failed upstream calls",
			},
			[]string{"upstream"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestLatency,
		m.cacheLookups,
		m.upstreamErrors,
	)
	return m
}

// RegisterBreakers exposes the state of each breaker as a gauge
// (0=closed, 1=open, 2=half-open).
func (m *Metrics) RegisterBreakers(breakers []*circuitbreaker.CircuitBreaker) {
	if m == nil {
		return
	}
	for _, cb := range breakers {
		cb := cb
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "kolfeed_circuit_breaker_state",
				Help:        "Circuit breaker state (0=closed, 1=open, 2=half-open)",
				ConstLabels: prometheus.Labels{"upstream": cb.Name()},
			},
			func() float64 { return float64(cb.GetState()) },
		))
	}
}

// ObserveUpstreamFailure counts a failed upstream call
func (m *Metrics) ObserveUpstreamFailure(upstream types.Upstream) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(upstream.String()).Inc()
}

func (m *Metrics) observeRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) observeCache(operation string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(operation, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
