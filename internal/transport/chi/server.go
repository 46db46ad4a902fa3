package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/metrics"
	healthuc "github.com/kailas-cloud/songdex/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/songdex/internal/usecase/recommend"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidQuery      = "invalid_query"
	CodeInvalidK          = "invalid_k"
	CodeHybridUnavailable = "hybrid_unavailable"
	CodeExternalFetch     = "external_fetch_failed"
	CodeUnauthorized      = "unauthorized"
	CodeInternalError     = "internal_error"
)

const noRecommendationsMessage = "no recommendations found"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecommendationItem is one content-based neighbour.
type RecommendationItem struct {
	SongID      string             `json:"song_id"`
	Name        string             `json:"name"`
	Artist      string             `json:"artist"`
	Distance    float64            `json:"distance"`
	Features    map[string]float64 `json:"features"`
	HybridScore *float64           `json:"hybrid_score,omitempty"`
}

// TopItem is one entry of the fused ranking.
type TopItem struct {
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	Score  float64 `json:"score"`
}

// RecommendationsResponse is the body of GET /api/v1/recommendations.
type RecommendationsResponse struct {
	Query   string               `json:"query"`
	Anchor  *RecommendationItem  `json:"anchor,omitempty"`
	Items   []RecommendationItem `json:"items"`
	Top     []TopItem            `json:"top,omitempty"`
	Failed  int                  `json:"failed_lookups,omitempty"`
	Message string               `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	CatalogSize int               `json:"catalog_size"`
}

// Server serves the recommendation HTTP API.
type Server struct {
	recommend     *recommenduc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(recommend *recommenduc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		recommend: recommend,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidK, http.StatusBadRequest, CodeInvalidK),
		sentinelHandler(domain.ErrHybridUnavailable, http.StatusNotImplemented, CodeHybridUnavailable),
		sentinelHandler(domain.ErrExternalFetch, http.StatusBadGateway, CodeExternalFetch),
	}
	return s
}

// recommendationsParams are the query parameters of GET /api/v1/recommendations.
type recommendationsParams struct {
	Q      string
	K      int
	Hybrid bool
	Top    int
}

func bindRecommendationsParams(r *http.Request) (recommendationsParams, error) {
	var p recommendationsParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "q", query, &p.Q); err != nil {
		return p, fmt.Errorf("invalid format for parameter q: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", query, &p.K); err != nil {
		return p, fmt.Errorf("invalid format for parameter k: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "hybrid", query, &p.Hybrid); err != nil {
		return p, fmt.Errorf("invalid format for parameter hybrid: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "top", query, &p.Top); err != nil {
		return p, fmt.Errorf("invalid format for parameter top: %w", err)
	}
	return p, nil
}

// validate checks values that parsed but are out of range. Absent k and top stay 0 (defaults).
func (p recommendationsParams) validate(query map[string][]string) error {
	if strings.TrimSpace(p.Q) == "" {
		return fmt.Errorf("%w: q is required", domain.ErrInvalidQuery)
	}
	if _, ok := query["k"]; ok && p.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidK, p.K)
	}
	if _, ok := query["top"]; ok && p.Top <= 0 {
		return fmt.Errorf("%w: top must be positive, got %d", domain.ErrInvalidK, p.Top)
	}
	return nil
}

// Recommendations handles GET /api/v1/recommendations.
func (s *Server) Recommendations(w http.ResponseWriter, r *http.Request) {
	params, err := bindRecommendationsParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	mode := "content"
	if params.Hybrid {
		mode = "hybrid"
	}

	if err := params.validate(r.URL.Query()); err != nil {
		metrics.RecommendationsTotal.WithLabelValues(mode, metrics.OutcomeError).Inc()
		s.handleDomainError(w, err)
		return
	}

	var res recommenduc.Result
	if params.Hybrid {
		res, err = s.recommend.Hybrid(r.Context(), params.Q, params.K, params.Top)
	} else {
		res.Entries, err = s.recommend.Recommend(r.Context(), params.Q, params.K)
	}
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(mode, metrics.OutcomeError).Inc()
		s.handleDomainError(w, err)
		return
	}

	if len(res.Entries) == 0 {
		metrics.RecommendationsTotal.WithLabelValues(mode, metrics.OutcomeNoMatch).Inc()
		writeJSON(w, http.StatusOK, RecommendationsResponse{
			Query:   params.Q,
			Items:   []RecommendationItem{},
			Message: noRecommendationsMessage,
		})
		return
	}

	metrics.RecommendationsTotal.WithLabelValues(mode, metrics.OutcomeOK).Inc()
	if params.Hybrid && res.Hybrid.Failed > 0 {
		metrics.HybridFailedLookups.Add(float64(res.Hybrid.Failed))
	}
	writeJSON(w, http.StatusOK, toRecommendationsResponse(params.Q, params.Hybrid, res))
}

func toRecommendationsResponse(query string, hybrid bool, res recommenduc.Result) RecommendationsResponse {
	anchor := entryToItem(res.Entries[0])
	resp := RecommendationsResponse{
		Query:  query,
		Anchor: &anchor,
		Items:  make([]RecommendationItem, 0, len(res.Entries)-1),
	}

	if !hybrid {
		for _, e := range res.Entries[1:] {
			resp.Items = append(resp.Items, entryToItem(e))
		}
		return resp
	}

	for _, c := range res.Hybrid.Candidates {
		item := entryToItem(c.Entry)
		score := c.HybridScore
		item.HybridScore = &score
		resp.Items = append(resp.Items, item)
	}
	resp.Top = make([]TopItem, len(res.Hybrid.Top))
	for i, t := range res.Hybrid.Top {
		resp.Top[i] = TopItem{Name: t.Name, Artist: t.Artist, Score: t.Score}
	}
	resp.Failed = res.Hybrid.Failed
	return resp
}

func entryToItem(e recommenduc.Entry) RecommendationItem {
	s := e.Song
	return RecommendationItem{
		SongID:   s.ID(),
		Name:     s.Name(),
		Artist:   s.ArtistName(),
		Distance: e.Distance,
		Features: e.Features.Map(),
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		CatalogSize: report.CatalogSize,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors carry their own detail; everything else collapses to the sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrInvalidK) {
		return err.Error()
	}
	for _, s := range []error{domain.ErrHybridUnavailable, domain.ErrExternalFetch} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
