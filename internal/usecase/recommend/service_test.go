package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
)

func newTestService(t *testing.T, f Fetcher, opts FuseOptions) *Service {
	t.Helper()
	e := newTestEngine(t, 0,
		mkSong("a", "Song A", "Artist X", feats(0)),
		mkSong("b", "Song B", "Artist Y", feats(1)),
		mkSong("c", "Song C", "Artist Z", feats(5)),
	)
	return New(e, f, opts)
}

func TestService_Recommend(t *testing.T) {
	svc := newTestService(t, nil, FuseOptions{})
	entries, err := svc.Recommend(context.Background(), "song a", 2)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(entries) != 2 || entries[0].Song.Name() != "Song A" || entries[1].Song.Name() != "Song B" {
		t.Errorf("unexpected entries: %v", entries)
	}
	if svc.HybridEnabled() {
		t.Error("HybridEnabled should be false without a fetcher")
	}
}

func TestService_Recommend_WrapsErrors(t *testing.T) {
	svc := newTestService(t, nil, FuseOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Recommend(ctx, "song a", 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestService_Hybrid_NoFetcher(t *testing.T) {
	svc := newTestService(t, nil, FuseOptions{})
	_, err := svc.Hybrid(context.Background(), "song a", 2, 0)
	if !errors.Is(err, domain.ErrHybridUnavailable) {
		t.Errorf("expected ErrHybridUnavailable, got %v", err)
	}
}

func TestService_Hybrid(t *testing.T) {
	f := &mockFetcher{results: map[string][]similar.Track{
		"Song B": {similar.New("Song C", "Artist Z", 0.8), similar.New("Song A", "Artist X", 0.9)},
	}}
	svc := newTestService(t, f, FuseOptions{})
	if !svc.HybridEnabled() {
		t.Fatal("HybridEnabled should be true")
	}

	res, err := svc.Hybrid(context.Background(), "Song A", 2, 0)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if len(res.Hybrid.Top) != 1 || res.Hybrid.Top[0].Name != "Song C" {
		t.Errorf("Top = %+v, want [Song C]", res.Hybrid.Top)
	}
	if len(res.Hybrid.Candidates) != 1 || res.Hybrid.Candidates[0].Song.Name() != "Song B" {
		t.Errorf("Candidates = %+v", res.Hybrid.Candidates)
	}
}

func TestService_Hybrid_AnchorAmongDuplicates(t *testing.T) {
	e := newTestEngine(t, 2,
		mkSong("d1", "Dup One", "A", feats(1)),
		mkSong("d2", "Dup Two", "B", feats(1)),
		mkSong("t", "Target", "C", feats(1)),
		mkSong("far", "Far", "D", feats(5)),
	)
	f := &mockFetcher{results: map[string][]similar.Track{
		"Dup One": {similar.New("Target", "C", 0.9)},
		"Dup Two": {similar.New("Target", "C", 0.9), similar.New("Far", "D", 0.2)},
	}}
	svc := New(e, f, FuseOptions{})

	res, err := svc.Hybrid(context.Background(), "target", 2, 0)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if res.Entries[0].Song.Name() != "Target" {
		t.Fatalf("entry 0 = %q, want Target", res.Entries[0].Song.Name())
	}
	if len(res.Hybrid.Top) != 1 || res.Hybrid.Top[0].Name != "Far" {
		t.Errorf("Top = %+v, want only Far", res.Hybrid.Top)
	}
}

func TestService_Hybrid_NoMatch(t *testing.T) {
	f := &mockFetcher{}
	svc := newTestService(t, f, FuseOptions{})
	res, err := svc.Hybrid(context.Background(), "nothing like this", 2, 0)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(res.Entries) != 0 || len(res.Hybrid.Top) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetcher called on no match: %v", f.calls)
	}
}

func TestService_Hybrid_TopNOverride(t *testing.T) {
	f := &mockFetcher{results: map[string][]similar.Track{
		"Song B": {similar.New("X", "x", 0.9), similar.New("Y", "y", 0.8), similar.New("Z", "z", 0.7)},
		"Song C": {similar.New("W", "w", 0.1)},
	}}
	svc := newTestService(t, f, FuseOptions{TopN: 3})

	res, err := svc.Hybrid(context.Background(), "Song A", 3, 0)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(res.Hybrid.Top) != 3 {
		t.Errorf("configured TopN: got %d entries, want 3", len(res.Hybrid.Top))
	}

	res, err = svc.Hybrid(context.Background(), "Song A", 3, 1)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(res.Hybrid.Top) != 1 || res.Hybrid.Top[0].Name != "X" {
		t.Errorf("override TopN: got %+v", res.Hybrid.Top)
	}
}
