package lastfm

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/metrics"
)

// BreakerConfig tunes the circuit breaker. Zero values select the defaults.
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MinRequests and FailureRatio decide when to open.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "lastfm",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

func (c *BreakerConfig) applyDefaults() {
	d := DefaultBreakerConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Interval == 0 {
		c.Interval = d.Interval
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
}

// BreakerFetcher guards a fetcher with a circuit breaker. While open, lookups
// fail fast with domain.ErrExternalFetch.
type BreakerFetcher struct {
	inner  domain.SimilarFetcher
	cb     *gobreaker.CircuitBreaker[[]similar.Track]
	name   string
	deep   domain.HealthChecker
	logger *zap.Logger
}

// NewBreakerFetcher wraps inner with a circuit breaker.
func NewBreakerFetcher(inner domain.SimilarFetcher, cfg BreakerConfig, logger *zap.Logger) *BreakerFetcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	bf := &BreakerFetcher{inner: inner, name: cfg.Name, logger: logger}
	bf.cb = gobreaker.NewCircuitBreaker[[]similar.Track](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logger.Warn("Opening circuit breaker",
					zap.String("breaker", cfg.Name),
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_ratio", ratio),
				)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A cancelled caller or a spent local quota says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrQuotaExceeded)
		},
	})
	return bf
}

// Similar implements domain.SimilarFetcher.
func (b *BreakerFetcher) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	tracks, err := b.cb.Execute(func() ([]similar.Track, error) {
		return b.inner.Similar(ctx, artist, track)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.SimilarRequestsTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%s breaker: %w: %w", b.name, domain.ErrExternalFetch, err)
		}
		return nil, err
	}
	return tracks, nil
}

// State returns the breaker state name ("closed", "half-open", "open").
func (b *BreakerFetcher) State() string {
	return b.cb.State().String()
}

// WithDeepCheck makes HealthCheck also call p while the breaker is not open.
func (b *BreakerFetcher) WithDeepCheck(p domain.HealthChecker) *BreakerFetcher {
	b.deep = p
	return b
}

// HealthCheck reports an open breaker without calling the provider.
// With a deep check attached, a closed breaker is confirmed against the provider.
func (b *BreakerFetcher) HealthCheck(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s breaker open: %w", b.name, domain.ErrExternalFetch)
	}
	if b.deep == nil {
		return nil
	}
	if err := b.deep.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s deep check: %w", b.name, err)
	}
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
