package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Similar-tracks provider metrics.
var (
	SimilarRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "similar_requests_total",
			Help:      "Total number of similar-tracks provider requests",
		},
		[]string{"status"}, // "ok" / "error" / "rejected"
	)

	SimilarRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "similar_request_duration_seconds",
			Help:      "Similar-tracks provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SimilarCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "similar_cache_total",
			Help:      "Similar-tracks cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	LookupQuotaRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lookup_quota_remaining",
			Help:      "Provider requests left in the current window (-1 = unlimited)",
		},
		[]string{"provider", "window"}, // window: "daily" / "monthly"
	)
)

var similarOnce sync.Once

// RegisterSimilarMetrics registers the provider, cache, breaker and quota metrics with the default registry.
func RegisterSimilarMetrics() {
	similarOnce.Do(func() {
		prometheus.MustRegister(SimilarRequestsTotal)
		prometheus.MustRegister(SimilarRequestDuration)
		prometheus.MustRegister(SimilarCacheTotal)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(LookupQuotaRemaining)
	})
}
