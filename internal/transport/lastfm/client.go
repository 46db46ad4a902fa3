package lastfm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/metrics"
)

// DefaultBaseURL is the public Last.fm API endpoint.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

const maxBodyBytes = 4 << 20

// Config holds the Last.fm client settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Limit caps the number of similar tracks per lookup. 0 leaves it to the service.
	Limit   int
	Timeout time.Duration
	// RatePerSec throttles outgoing requests. <= 0 disables throttling.
	RatePerSec float64
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a similar-tracks provider backed by Last.fm track.getSimilar.
type Client struct {
	apiKey  string
	baseURL string
	limit   int
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Last.fm client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("lastfm: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("lastfm: base url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		limit:   cfg.Limit,
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Similar implements domain.SimilarFetcher. A reply without similartracks yields
// no tracks; transport and API failures wrap domain.ErrExternalFetch.
func (c *Client) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	params := url.Values{}
	params.Set("method", "track.getsimilar")
	params.Set("artist", artist)
	params.Set("track", track)
	params.Set("autocorrect", "1")
	if c.limit > 0 {
		params.Set("limit", strconv.Itoa(c.limit))
	}

	start := time.Now()
	var resp similarResponse
	err := c.get(ctx, params, &resp)
	metrics.SimilarRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SimilarRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SimilarRequestsTotal.WithLabelValues("ok").Inc()

	if resp.SimilarTracks == nil {
		return nil, nil
	}
	out := make([]similar.Track, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		out = append(out, similar.New(t.Name, t.Artist.Name, float64(t.Match)))
	}

	c.logger.Debug("Similar tracks fetched",
		zap.String("artist", artist),
		zap.String("track", track),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// HealthCheck verifies API availability and the key with a one-row chart request.
func (c *Client) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("method", "chart.gettoptracks")
	params.Set("limit", "1")

	var resp similarResponse
	return c.get(ctx, params, &resp)
}

func (c *Client) get(ctx context.Context, params url.Values, out *similarResponse) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w: %w", domain.ErrExternalFetch, err)
	}

	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w: %w", domain.ErrExternalFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lastfm request: %w: %w", domain.ErrExternalFetch, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read lastfm response: %w: %w", domain.ErrExternalFetch, err)
	}

	// Error replies may come with 200 or 4xx; the envelope carries the detail.
	decodeErr := json.Unmarshal(body, out)
	if decodeErr == nil && out.Error != 0 {
		return fmt.Errorf("lastfm API error %d: %s: %w", out.Error, out.Message, domain.ErrExternalFetch)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("lastfm HTTP %d: %w", res.StatusCode, domain.ErrExternalFetch)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode lastfm response: %w: %w", domain.ErrExternalFetch, decodeErr)
	}
	return nil
}
