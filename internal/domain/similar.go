package domain

import (
	"context"

	"github.com/kailas-cloud/songdex/internal/domain/similar"
)

// SimilarFetcher is the shared "similar tracks" contract between layers.
// An empty result is not an error; transport failures wrap ErrExternalFetch.
type SimilarFetcher interface {
	Similar(ctx context.Context, artist, track string) ([]similar.Track, error)
}

// HealthChecker verifies external provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
