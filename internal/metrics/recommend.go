package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "songdex"

// Recommendation outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recommendations_total",
			Help:      "Total recommendation requests by mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: "content" / "hybrid"
	)

	HybridFailedLookups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "hybrid_failed_lookups_total",
			Help:      "Candidates skipped during fusion because their lookup failed",
		},
	)
)

var recommendOnce sync.Once

// RegisterRecommendMetrics registers recommendation metrics. Must be called once from main.
func RegisterRecommendMetrics() {
	recommendOnce.Do(func() {
		prometheus.MustRegister(RecommendationsTotal)
		prometheus.MustRegister(HybridFailedLookups)
	})
}
