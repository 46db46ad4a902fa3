package quota

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/metrics"
)

// Checker is the local interface for quota enforcement.
type Checker interface {
	Acquire(ctx context.Context) error
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Fetcher enforces a request quota in front of a similar-tracks provider.
// Every call that reaches the provider counts, failed or not; the slot is
// reserved before the call.
type Fetcher struct {
	inner    domain.SimilarFetcher
	provider string
	quota    Checker
	logger   *zap.Logger
}

// NewFetcher wraps a provider with quota enforcement.
func NewFetcher(inner domain.SimilarFetcher, provider string, quota Checker, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{inner: inner, provider: provider, quota: quota, logger: logger}
}

// Similar implements domain.SimilarFetcher.
func (f *Fetcher) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	if err := f.quota.Acquire(ctx); err != nil {
		f.logger.Warn("Lookup rejected by quota",
			zap.String("provider", f.provider),
			zap.String("track", track),
			zap.Error(err),
		)
		return nil, fmt.Errorf("quota check: %w: %w", domain.ErrExternalFetch, err)
	}

	tracks, err := f.inner.Similar(ctx, artist, track)

	remaining := metrics.LookupQuotaRemaining
	remaining.WithLabelValues(f.provider, "daily").Set(float64(f.quota.RemainingDaily()))
	remaining.WithLabelValues(f.provider, "monthly").Set(float64(f.quota.RemainingMonthly()))

	if err != nil {
		return nil, err
	}
	return tracks, nil
}
