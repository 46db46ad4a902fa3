package simcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/db"
	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
)

var cacheKeyPrefix = domain.KeyPrefix + "similar:"

// store is the consumer interface for the similar-tracks cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedFetcher caches similar-tracks responses in a key-value store.
type CachedFetcher struct {
	inner      domain.SimilarFetcher
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.SimilarFetcher,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type cachedTrack struct {
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	Match  float64 `json:"match"`
}

// Similar returns cached tracks or calls the inner fetcher.
// Errors from the inner fetcher are returned as-is and never cached.
func (c *CachedFetcher) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	key := cacheKey(artist, track)

	if tracks, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return tracks, nil
	}

	c.incCache("miss")

	tracks, err := c.inner.Similar(ctx, artist, track)
	if err != nil {
		return nil, fmt.Errorf("similar tracks: %w", err)
	}

	c.putToCache(ctx, key, tracks)
	return tracks, nil
}

func (c *CachedFetcher) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(artist, track string) string {
	h := sha256.Sum256([]byte(strings.ToLower(artist) + "\x00" + strings.ToLower(track)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedFetcher) getFromCache(ctx context.Context, key string) ([]similar.Track, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached similar tracks", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	var raw []cachedTrack
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("Failed to parse cached similar tracks, evicting", zap.String("key", key), zap.Error(err))
		if err := c.store.Del(ctx, key); err != nil {
			c.logger.Warn("Failed to evict cached similar tracks", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	tracks := make([]similar.Track, len(raw))
	for i, r := range raw {
		tracks[i] = similar.New(r.Name, r.Artist, r.Match)
	}
	return tracks, true
}

func (c *CachedFetcher) putToCache(ctx context.Context, key string, tracks []similar.Track) {
	raw := make([]cachedTrack, len(tracks))
	for i := range tracks {
		raw[i] = cachedTrack{Name: tracks[i].Name(), Artist: tracks[i].Artist(), Match: tracks[i].Match()}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		c.logger.Warn("Failed to encode similar tracks", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache similar tracks", zap.String("key", key), zap.Error(err))
	}
}
