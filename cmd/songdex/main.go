package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/config"
	"github.com/kailas-cloud/songdex/internal/db"
	dbRedis "github.com/kailas-cloud/songdex/internal/db/redis"
	"github.com/kailas-cloud/songdex/internal/domain"
	logpkg "github.com/kailas-cloud/songdex/internal/logger"
	"github.com/kailas-cloud/songdex/internal/metrics"
	catrepo "github.com/kailas-cloud/songdex/internal/repository/catalog"
	quotarepo "github.com/kailas-cloud/songdex/internal/repository/quota"
	"github.com/kailas-cloud/songdex/internal/repository/simcache"
	chiTransport "github.com/kailas-cloud/songdex/internal/transport/chi"
	"github.com/kailas-cloud/songdex/internal/transport/lastfm"
	"github.com/kailas-cloud/songdex/internal/version"
	healthuc "github.com/kailas-cloud/songdex/internal/usecase/health"
	"github.com/kailas-cloud/songdex/internal/usecase/quota"
	recommenduc "github.com/kailas-cloud/songdex/internal/usecase/recommend"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting songdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("hybrid", cfg.LastFM.Enabled()),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterRecommendMetrics()
	metrics.RegisterSimilarMetrics()

	// Catalog, scaler and index are built once and shared by every request.
	loader := catrepo.NewLoader(logger)
	cat, stats, err := loader.Load(catrepo.Source{
		SongsPath:    cfg.Catalog.SongsPath,
		FeaturesPath: cfg.Catalog.FeaturesPath,
		ParquetPath:  cfg.Catalog.ParquetPath,
	})
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	engine, err := recommenduc.NewEngine(cat, cfg.Index.K)
	if err != nil {
		logger.Fatal("Failed to build recommendation engine", zap.Error(err))
	}
	logger.Info("Recommendation engine ready",
		zap.Int("songs", cat.Len()),
		zap.Int("dropped_rows", stats.Dropped),
		zap.Int("k", engine.DefaultK()),
	)

	ctx := context.Background()

	// Optional similar-tracks cache
	var store db.Store
	if cfg.Cache.Enabled {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.String("driver", cfg.Cache.Driver), zap.Error(err))
		}
		defer s.Close()

		if err := s.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		store = s
		logger.Info("Connected to cache", zap.String("driver", cfg.Cache.Driver), zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Build similar-tracks chain (composition root).
	// Pass nil interfaces (not typed nil pointers!) when hybrid mode is off.
	// Go gotcha: (*BreakerFetcher)(nil) wrapped in an interface != nil.
	var fetcher recommenduc.Fetcher
	var provider healthuc.ProviderChecker
	if cfg.LastFM.Enabled() {
		f, breaker := buildFetcher(cfg, store, logger)
		fetcher, provider = f, breaker
		logger.Info("Hybrid recommendations enabled",
			zap.String("base_url", cfg.LastFM.BaseURL),
			zap.Int("concurrency", cfg.LastFM.Concurrency),
		)
	} else {
		logger.Warn("lastfm.api_key is empty, hybrid recommendations disabled")
	}

	recommendSvc := recommenduc.New(engine, fetcher, recommenduc.FuseOptions{
		TopN:        cfg.Index.TopN,
		Timeout:     cfg.LastFM.Timeout(),
		Concurrency: cfg.LastFM.Concurrency,
	})

	var cache healthuc.CachePinger
	if store != nil {
		cache = store
	}
	healthSvc := healthuc.New(engine, cache, provider)

	server := chiTransport.NewServer(recommendSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown; SIGHUP reloads the catalog.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	go func() {
		for range hup {
			reloadCatalog(loader, engine, cfg.Catalog, logger)
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildFetcher assembles the decorator chain: Last.fm -> Quota -> Breaker -> Cached.
// The cache is outermost so hits never count against the breaker, the quota or the rate limit.
func buildFetcher(cfg config.Config, store db.Store, logger *zap.Logger) (recommenduc.Fetcher, *lastfm.BreakerFetcher) {
	client, err := lastfm.NewClient(&lastfm.Config{
		APIKey:     cfg.LastFM.APIKey,
		BaseURL:    cfg.LastFM.BaseURL,
		Limit:      cfg.LastFM.Limit,
		Timeout:    cfg.LastFM.Timeout(),
		RatePerSec: cfg.LastFM.RatePerSec,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Failed to create Last.fm client", zap.Error(err))
	}

	var provider domain.SimilarFetcher = client
	if q := cfg.LastFM.Quota; q.Enabled() {
		tracker := quota.NewTracker("lastfm", q.DailyLimit, q.MonthlyLimit, quota.Action(q.Action), logger)
		if store != nil {
			tracker.WithStore(context.Background(), quotarepo.New(store, quotarepo.DefaultDailyTTL, quotarepo.DefaultMonthlyTTL))
		}
		provider = quota.NewFetcher(client, "lastfm", tracker, logger)
		logger.Info("Last.fm lookup quota enabled",
			zap.Int64("daily_limit", q.DailyLimit),
			zap.Int64("monthly_limit", q.MonthlyLimit),
			zap.String("action", q.Action),
		)
	}

	b := cfg.LastFM.Breaker
	breaker := lastfm.NewBreakerFetcher(provider, lastfm.BreakerConfig{
		Name:         "lastfm",
		MaxRequests:  b.MaxRequests,
		Interval:     time.Duration(b.IntervalSec) * time.Second,
		Timeout:      time.Duration(b.TimeoutSec) * time.Second,
		MinRequests:  b.MinRequests,
		FailureRatio: b.FailureRatio,
	}, logger)
	if cfg.LastFM.DeepHealth {
		breaker.WithDeepCheck(client)
	}

	var fetcher domain.SimilarFetcher = breaker
	if store != nil {
		fetcher = simcache.New(breaker, store, time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.SimilarCacheTotal, logger)
	}
	return fetcher, breaker
}

func reloadCatalog(loader *catrepo.Loader, engine *recommenduc.Engine, cc config.CatalogConfig, logger *zap.Logger) {
	cat, _, err := loader.Load(catrepo.Source{
		SongsPath:    cc.SongsPath,
		FeaturesPath: cc.FeaturesPath,
		ParquetPath:  cc.ParquetPath,
	})
	if err != nil {
		logger.Error("Catalog reload failed, keeping previous catalog", zap.Error(err))
		return
	}
	if err := engine.Reload(cat); err != nil {
		logger.Error("Engine refit failed, keeping previous catalog", zap.Error(err))
		return
	}
	logger.Info("Catalog reloaded", zap.Int("songs", cat.Len()))
}
