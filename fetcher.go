package songdex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
)

// SimilarFetcher looks up tracks reported as similar to (artist, track).
// An empty result is not an error. Implementations must be safe for
// concurrent use when WithConcurrency is above 1.
type SimilarFetcher interface {
	Similar(ctx context.Context, artist, track string) ([]Track, error)
}

// fetcherAdapter wraps a public SimilarFetcher to satisfy the internal contract.
type fetcherAdapter struct {
	inner SimilarFetcher
}

func (a *fetcherAdapter) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	ts, err := a.inner.Similar(ctx, artist, track)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExternalFetch, err)
	}
	out := make([]similar.Track, len(ts))
	for i, t := range ts {
		out[i] = similar.New(t.Name, t.Artist, t.Match)
	}
	return out, nil
}
