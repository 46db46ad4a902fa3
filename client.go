package songdex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/db"
	dbRedis "github.com/kailas-cloud/songdex/internal/db/redis"
	"github.com/kailas-cloud/songdex/internal/domain"
	domcat "github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/song"
	"github.com/kailas-cloud/songdex/internal/metrics"
	catrepo "github.com/kailas-cloud/songdex/internal/repository/catalog"
	"github.com/kailas-cloud/songdex/internal/repository/simcache"
	"github.com/kailas-cloud/songdex/internal/transport/lastfm"
	healthuc "github.com/kailas-cloud/songdex/internal/usecase/health"
	"github.com/kailas-cloud/songdex/internal/usecase/quota"
	recommenduc "github.com/kailas-cloud/songdex/internal/usecase/recommend"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultFetchTimeout     = 5 * time.Second
)

// recommender is the internal interface for the recommendation use case.
type recommender interface {
	Recommend(ctx context.Context, query string, k int) ([]recommenduc.Entry, error)
	Hybrid(ctx context.Context, query string, k, topN int) (recommenduc.Result, error)
}

// Client is the songdex entry point. Safe for concurrent use.
type Client struct {
	engine    *recommenduc.Engine
	svc       recommender
	healthSvc healthUseCase
	loader    *catrepo.Loader
	source    *catrepo.Source
	store     db.Store
	obs       *observer
}

// New loads the catalog, fits the engine and wires the optional similar-tracks chain.
// The provided context is used for the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	d := domain.DefaultRecommendConfig()
	cfg := &clientConfig{k: d.K, topN: d.TopN, concurrency: d.Concurrency}
	for _, o := range opts {
		o.apply(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	c := &Client{loader: catrepo.NewLoader(logger), obs: obs}

	cat, err := c.initialCatalog(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := recommenduc.NewEngine(cat, cfg.k)
	if err != nil {
		return nil, fmt.Errorf("songdex: build engine: %w", err)
	}
	c.engine = engine

	fetcher, provider, err := c.buildFetcher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	timeout := cfg.fetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	c.svc = recommenduc.New(engine, fetcher, recommenduc.FuseOptions{
		TopN:        cfg.topN,
		Timeout:     timeout,
		Concurrency: cfg.concurrency,
	})

	// Pass nil interfaces (not typed nil pointers) for absent components.
	var cache healthuc.CachePinger
	if c.store != nil {
		cache = c.store
	}
	var prov healthuc.ProviderChecker
	if provider != nil {
		prov = provider
	}
	c.healthSvc = healthuc.New(engine, cache, prov)

	return c, nil
}

func (c *Client) initialCatalog(cfg *clientConfig) (*domcat.Catalog, error) {
	switch {
	case cfg.songs != nil:
		return catalogFromSongs(cfg.songs)
	case cfg.songsPath != "":
		c.source = &catrepo.Source{SongsPath: cfg.songsPath, FeaturesPath: cfg.featuresPath}
		cat, _, err := c.loader.Load(*c.source)
		if err != nil {
			return nil, fmt.Errorf("songdex: load catalog: %w", err)
		}
		return cat, nil
	default:
		return nil, errors.New("songdex: catalog required (use WithCatalogFiles or WithCatalog)")
	}
}

// buildFetcher assembles the lookup chain: cache -> breaker -> quota -> Last.fm.
// Returns a nil fetcher when hybrid mode is not configured.
func (c *Client) buildFetcher(
	ctx context.Context, cfg *clientConfig, logger *zap.Logger,
) (recommenduc.Fetcher, domain.HealthChecker, error) {
	var base domain.SimilarFetcher
	var provider domain.HealthChecker

	switch {
	case cfg.fetcher != nil:
		base = &fetcherAdapter{inner: cfg.fetcher}
	case cfg.lastfmKey != "":
		timeout := cfg.fetchTimeout
		if timeout <= 0 {
			timeout = defaultFetchTimeout
		}
		client, err := lastfm.NewClient(&lastfm.Config{
			APIKey:  cfg.lastfmKey,
			BaseURL: cfg.lastfmBaseURL,
			Limit:   cfg.lastfmLimit,
			Timeout: timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("songdex: %w", err)
		}
		var inner domain.SimilarFetcher = client
		if cfg.quotaDaily > 0 || cfg.quotaMonthly > 0 {
			tracker := quota.NewTracker("lastfm", cfg.quotaDaily, cfg.quotaMonthly, quota.ActionReject, logger)
			inner = quota.NewFetcher(client, "lastfm", tracker, logger)
		}
		breaker := lastfm.NewBreakerFetcher(inner, lastfm.DefaultBreakerConfig(), logger)
		base, provider = breaker, breaker
	default:
		return nil, nil, nil
	}

	if len(cfg.cacheAddrs) == 0 {
		return base, provider, nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("songdex: create cache store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("songdex: cache not ready: %w", err)
	}
	c.store = store

	ttl := cfg.cacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return simcache.New(base, store, ttl, metrics.SimilarCacheTotal, logger), provider, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Recommend returns the songs closest to the first catalog song whose name
// contains query (case-insensitive). Result.Empty reports no match.
func (c *Client) Recommend(ctx context.Context, query string) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("recommend", start, err) }()

	if strings.TrimSpace(query) == "" {
		return Result{Query: query}, fmt.Errorf("songdex: %w: query is empty", ErrInvalidQuery)
	}
	entries, err := c.svc.Recommend(ctx, query, 0)
	if err != nil {
		return Result{}, fmt.Errorf("songdex: %w", err)
	}
	return toResult(query, entries, nil), nil
}

// Hybrid returns the content-based neighbours annotated with external match
// scores and the top of the fused ranking. A failed lookup for one neighbour
// is skipped, not returned. Requires WithLastFM or WithFetcher.
func (c *Client) Hybrid(ctx context.Context, query string) (res HybridResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("hybrid", start, err) }()

	if strings.TrimSpace(query) == "" {
		return HybridResult{Result: Result{Query: query}},
			fmt.Errorf("songdex: %w: query is empty", ErrInvalidQuery)
	}
	r, err := c.svc.Hybrid(ctx, query, 0, 0)
	if err != nil {
		return HybridResult{}, fmt.Errorf("songdex: %w", err)
	}
	if len(r.Entries) == 0 {
		return HybridResult{Result: Result{Query: query}}, nil
	}

	scores := make(map[string]float64, len(r.Hybrid.Candidates))
	for _, cand := range r.Hybrid.Candidates {
		scores[cand.Song.ID()] = cand.HybridScore
	}
	out := HybridResult{
		Result:        toResult(query, r.Entries, scores),
		Top:           make([]Scored, len(r.Hybrid.Top)),
		FailedLookups: r.Hybrid.Failed,
	}
	for i, t := range r.Hybrid.Top {
		out.Top[i] = Scored{Name: t.Name, Artist: t.Artist, Score: t.Score}
	}
	return out, nil
}

// Reload re-reads the catalog files and refits the engine. In-flight requests
// finish on the previous catalog; on error it stays in place.
func (c *Client) Reload(_ context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err) }()

	if c.source == nil {
		return errors.New("songdex: reload requires WithCatalogFiles")
	}
	cat, _, err := c.loader.Load(*c.source)
	if err != nil {
		return fmt.Errorf("songdex: load catalog: %w", err)
	}
	if err := c.engine.Reload(cat); err != nil {
		return fmt.Errorf("songdex: refit engine: %w", err)
	}
	return nil
}

// CatalogSize returns the number of songs currently served.
func (c *Client) CatalogSize() int {
	return c.engine.Catalog().Len()
}

func toResult(query string, entries []recommenduc.Entry, scores map[string]float64) Result {
	res := Result{Query: query}
	if len(entries) == 0 {
		return res
	}
	anchor := toRecommendation(entries[0], 0)
	res.Anchor = &anchor
	res.Recommendations = make([]Recommendation, 0, len(entries)-1)
	for _, e := range entries[1:] {
		res.Recommendations = append(res.Recommendations, toRecommendation(e, scores[e.Song.ID()]))
	}
	return res
}

func toRecommendation(e recommenduc.Entry, hybridScore float64) Recommendation {
	s := e.Song
	return Recommendation{
		Song: Song{
			ID:       s.ID(),
			Name:     s.Name(),
			ArtistID: s.ArtistID(),
			Artist:   s.ArtistName(),
			Features: e.Features.Map(),
		},
		Distance:    e.Distance,
		HybridScore: hybridScore,
	}
}

func catalogFromSongs(songs []Song) (*domcat.Catalog, error) {
	out := make([]song.Song, 0, len(songs))
	for _, s := range songs {
		var f song.Features
		for i, name := range song.FeatureNames {
			v, ok := s.Features[name]
			if !ok {
				return nil, fmt.Errorf("songdex: %w: song %s: missing feature %s", ErrDataError, s.ID, name)
			}
			f[i] = v
		}
		ds, err := song.New(s.ID, s.Name, s.ArtistID, s.Artist, f)
		if err != nil {
			return nil, fmt.Errorf("songdex: %w: %w", ErrDataError, err)
		}
		out = append(out, ds)
	}
	cat, err := domcat.New(out)
	if err != nil {
		return nil, fmt.Errorf("songdex: %w", err)
	}
	return cat, nil
}
