// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the decision engine and HTTP layer.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms observed by the decision
// engine and the HTTP handlers.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	DecisionLatency prometheus.Histogram
	AllowedTotal    prometheus.Counter
	BlockedTotal    prometheus.Counter
	RedisPoolInUse  prometheus.Gauge
}

// NewMetrics registers the service's metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total requests processed, labeled by route and outcome.",
		}, []string{"route", "outcome"}),
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_latency_ms",
			Help:      "Decision engine latency in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		AllowedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rl_allowed_total",
			Help:      "Allowed rate-limit decisions.",
		}),
		BlockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rl_blocked_total",
			Help:      "Blocked rate-limit decisions.",
		}),
		RedisPoolInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redis_pool_in_use",
			Help:      "Approximate number of Redis pool connections in use.",
		}),
	}
}

// ObserveDecision records the outcome and latency of a single decision.
func (m *Metrics) ObserveDecision(allowed bool, latencyMs float64) {
	m.DecisionLatency.Observe(latencyMs)
	if allowed {
		m.AllowedTotal.Inc()
	} else {
		m.BlockedTotal.Inc()
	}
}

// ObserveRequest increments the route/outcome counter.
func (m *Metrics) ObserveRequest(route, outcome string) {
	m.RequestsTotal.WithLabelValues(route, outcome).Inc()
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
