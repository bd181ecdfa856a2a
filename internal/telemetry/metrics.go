package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Requests        *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	UsageDropped    prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_optimizer_requests_total",
			Help: "Optimization requests by operation, provider and outcome",
		}, []string{"operation", "provider", "outcome"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prompt_optimizer_provider_latency_seconds",
			Help:    "Provider round-trip latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "prompt_optimizer_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter",
		}),

		UsageDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "prompt_optimizer_usage_dropped_total",
			Help: "Usage records that could not be persisted",
		}),
	}
}

func (m *Metrics) ObserveRequest(operation, provider, outcome string) {
	if provider == "" {
		provider = "unknown"
	}
	m.Requests.WithLabelValues(operation, provider, outcome).Inc()
}

func (m *Metrics) ObserveLatency(provider string, d time.Duration) {
	m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}
