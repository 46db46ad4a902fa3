package recommend

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/songdex/internal/domain"
)

// Service runs the content-based pipeline and, when a fetcher is configured,
// fuses it with externally reported similar tracks.
type Service struct {
	engine  *Engine
	fetcher Fetcher
	opts    FuseOptions
}

// New creates a recommendation service. fetcher can be nil (content-based only).
func New(engine *Engine, fetcher Fetcher, opts FuseOptions) *Service {
	return &Service{engine: engine, fetcher: fetcher, opts: opts}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine { return s.engine }

// HybridEnabled reports whether a similar-tracks fetcher is configured.
func (s *Service) HybridEnabled() bool { return s.fetcher != nil }

// Recommend returns the content-based list, anchor first. Empty when nothing matches.
func (s *Service) Recommend(ctx context.Context, query string, k int) ([]Entry, error) {
	entries, err := s.engine.Recommend(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return entries, nil
}

// Hybrid returns the content-based list and its fused view.
// topN overrides the configured top list size when positive.
func (s *Service) Hybrid(ctx context.Context, query string, k, topN int) (Result, error) {
	if s.fetcher == nil {
		return Result{}, domain.ErrHybridUnavailable
	}

	entries, err := s.Recommend(ctx, query, k)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{}, nil
	}

	opts := s.opts
	if topN > 0 {
		opts.TopN = topN
	}
	return Result{
		Entries: entries,
		Hybrid:  Fuse(ctx, entries[0].Song.Name(), entries[1:], s.fetcher, opts),
	}, nil
}
