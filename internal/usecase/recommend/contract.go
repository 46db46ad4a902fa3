package recommend

import (
	"context"

	"github.com/kailas-cloud/songdex/internal/domain/similar"
)

// Fetcher looks up tracks an external service reports as similar to (artist, track).
// An empty result is not an error.
type Fetcher interface {
	Similar(ctx context.Context, artist, track string) ([]similar.Track, error)
}
