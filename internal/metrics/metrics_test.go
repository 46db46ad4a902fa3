package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	RegisterSimilarMetrics()
	RegisterSimilarMetrics()
	RegisterRecommendMetrics()
	RegisterRecommendMetrics()
}

func TestSimilarMetrics_Names(t *testing.T) {
	SimilarRequestsTotal.WithLabelValues("ok").Inc()
	SimilarCacheTotal.WithLabelValues("hit").Inc()
	BreakerState.WithLabelValues("lastfm").Set(0)

	const want = `
# HELP songdex_similar_cache_total Similar-tracks cache hits and misses
# TYPE songdex_similar_cache_total counter
songdex_similar_cache_total{result="hit"} 1
`
	if err := testutil.CollectAndCompare(SimilarCacheTotal, strings.NewReader(want)); err != nil {
		t.Errorf("unexpected collection: %v", err)
	}
	if got := testutil.ToFloat64(SimilarRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("similar_requests_total{ok} = %f, want 1", got)
	}
}

func TestRecommendMetrics(t *testing.T) {
	before := testutil.ToFloat64(RecommendationsTotal.WithLabelValues("hybrid", OutcomeNoMatch))
	RecommendationsTotal.WithLabelValues("hybrid", OutcomeNoMatch).Inc()
	after := testutil.ToFloat64(RecommendationsTotal.WithLabelValues("hybrid", OutcomeNoMatch))
	if after-before != 1 {
		t.Errorf("expected increment of 1, got %f", after-before)
	}
}
