package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/domain/song"
	healthuc "github.com/kailas-cloud/songdex/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/songdex/internal/usecase/recommend"
)

type stubFetcher struct {
	results map[string][]similar.Track
	errs    map[string]error
}

func (f *stubFetcher) Similar(_ context.Context, _, track string) ([]similar.Track, error) {
	if err, ok := f.errs[track]; ok {
		return nil, err
	}
	return f.results[track], nil
}

func feats(i float64) song.Features {
	return song.Features{
		0.1 * i, 0.05*i + 0.1, -10 + i, 0.01*i + 0.02, 1 - 0.1*i,
		0.02 * i, 0.3 + 0.01*i, 0.5 - 0.03*i, 90 + 7*i,
	}
}

// newTestServer serves Song A, Song B and Song C, with B closer to A than C.
// fetcher may be nil to disable hybrid mode.
func newTestServer(t *testing.T, fetcher recommenduc.Fetcher) *Server {
	t.Helper()
	cat, err := catalog.New([]song.Song{
		song.Reconstruct("1", "Song A", "a1", "Artist A", feats(0)),
		song.Reconstruct("2", "Song B", "a2", "Artist B", feats(1)),
		song.Reconstruct("3", "Song C", "a3", "Artist C", feats(5)),
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	engine, err := recommenduc.NewEngine(cat, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	svc := recommenduc.New(engine, fetcher, recommenduc.FuseOptions{TopN: 5})
	return NewServer(svc, healthuc.New(engine, nil, nil), nil)
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}
