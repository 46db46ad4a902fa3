package songdex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	songsPath    string
	featuresPath string
	songs        []Song

	k            int
	topN         int
	fetchTimeout time.Duration
	concurrency  int

	lastfmKey     string
	lastfmBaseURL string
	lastfmLimit   int
	quotaDaily    int64
	quotaMonthly  int64
	fetcher       SimilarFetcher

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithCatalogFiles loads the catalog from a songs table and an acoustic
// features table (tab-separated). A songs path ending in .parquet with an
// empty features path is read as a single Parquet file instead.
func WithCatalogFiles(songsPath, featuresPath string) Option {
	return optionFunc(func(c *clientConfig) {
		c.songsPath = songsPath
		c.featuresPath = featuresPath
	})
}

// WithCatalog serves an in-memory catalog. Takes precedence over WithCatalogFiles.
func WithCatalog(songs []Song) Option {
	return optionFunc(func(c *clientConfig) {
		c.songs = songs
	})
}

// WithK sets how many neighbours to return, the resolved song included.
// Default: 5.
func WithK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.k = k
	})
}

// WithTopN sets the size of the fused ranking. Default: 5.
func WithTopN(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topN = n
	})
}

// WithLastFM enables hybrid recommendations through the Last.fm API.
func WithLastFM(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.lastfmKey = apiKey
	})
}

// WithLastFMEndpoint overrides the Last.fm base URL and the per-lookup track limit.
// limit 0 leaves it to the service.
func WithLastFMEndpoint(baseURL string, limit int) Option {
	return optionFunc(func(c *clientConfig) {
		c.lastfmBaseURL = baseURL
		c.lastfmLimit = limit
	})
}

// WithLastFMQuota caps Last.fm requests per UTC day and month (0 = unlimited).
// Lookups past the cap fail with ErrQuotaExceeded and count as failed lookups.
// Cache hits are free.
func WithLastFMQuota(daily, monthly int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.quotaDaily = daily
		c.quotaMonthly = monthly
	})
}

// WithFetcher sets a custom similar-tracks provider. Takes precedence over WithLastFM.
func WithFetcher(f SimilarFetcher) Option {
	return optionFunc(func(c *clientConfig) {
		c.fetcher = f
	})
}

// WithRedisCache caches similar-track lookups in Redis or Valkey.
// ttl <= 0 keeps entries for 24h.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithFetchTimeout bounds each similar-tracks lookup. Default: 5s.
func WithFetchTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.fetchTimeout = d
	})
}

// WithConcurrency sets how many lookups run in parallel. Default: 1 (sequential).
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
