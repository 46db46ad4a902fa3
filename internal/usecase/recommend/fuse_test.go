package recommend

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/logger"
)

func scoreOf(h Hybrid, name string) (float64, bool) {
	for _, e := range h.Top {
		if e.Name == name {
			return e.Score, true
		}
	}
	return 0, false
}

func TestFuse_AnchorExcluded(t *testing.T) {
	entries := []Entry{
		{Song: mkSong("a", "Song A", "Artist X", feats(1))},
		{Song: mkSong("b", "Song B", "Artist Y", feats(2)), Distance: 1.5},
	}
	f := &mockFetcher{results: map[string][]similar.Track{
		"Song B": {similar.New("Song C", "Artist Z", 0.8), similar.New("Song A", "Artist X", 0.9)},
	}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{})

	if _, ok := scoreOf(h, "Song A"); ok {
		t.Error("anchor must be excluded from fused ranking")
	}
	got, ok := scoreOf(h, "Song C")
	if !ok || math.Abs(got-0.8) > 1e-12 {
		t.Errorf("Song C score = %v (%v), want 0.8", got, ok)
	}
	if len(f.calls) != 1 || f.calls[0] != "Song B" {
		t.Errorf("fetcher calls = %v, want [Song B] (anchor skipped)", f.calls)
	}
}

func TestFuse_AnchorExclusionIgnoresCase(t *testing.T) {
	entries := entriesOf("Hello", "Other")
	f := &mockFetcher{results: map[string][]similar.Track{
		"Other": {similar.New("HELLO", "Someone", 0.7), similar.New("New", "N", 0.2)},
	}}
	h := fuseEntries(context.Background(), entries, f, FuseOptions{})
	if len(h.Top) != 1 || h.Top[0].Name != "New" {
		t.Fatalf("Top = %+v, want only New", h.Top)
	}
}

func TestFuse_SumsAcrossCandidates(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2", "c3")
	f := &mockFetcher{results: map[string][]similar.Track{
		"c1": {similar.New("X", "Artist 1", 0.5), similar.New("Y", "Artist Y", 0.4)},
		"c2": {similar.New("X", "Artist 2", 0.3)},
		"c3": {similar.New("Z", "Artist Z", 0.6), similar.New("X", "Artist 3", 0.1)},
	}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{})

	want := []HybridEntry{
		{Name: "X", Artist: "Artist 1", Score: 0.9},
		{Name: "Z", Artist: "Artist Z", Score: 0.6},
		{Name: "Y", Artist: "Artist Y", Score: 0.4},
	}
	if len(h.Top) != len(want) {
		t.Fatalf("Top len = %d, want %d", len(h.Top), len(want))
	}
	for i := range want {
		if h.Top[i].Name != want[i].Name || h.Top[i].Artist != want[i].Artist ||
			math.Abs(h.Top[i].Score-want[i].Score) > 1e-12 {
			t.Errorf("Top[%d] = %+v, want %+v", i, h.Top[i], want[i])
		}
	}
}

func TestFuse_KeyIsCaseSensitive(t *testing.T) {
	entries := entriesOf("anchor", "c1")
	f := &mockFetcher{results: map[string][]similar.Track{
		"c1": {similar.New("Song", "A", 0.5), similar.New("song", "A", 0.4)},
	}}
	h := fuseEntries(context.Background(), entries, f, FuseOptions{})
	if len(h.Top) != 2 {
		t.Fatalf("expected 2 distinct keys, got %+v", h.Top)
	}
}

func TestFuse_TieBreakFirstSeen(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2")
	f := &mockFetcher{results: map[string][]similar.Track{
		"c1": {similar.New("P", "p", 0.5), similar.New("Q", "q", 0.5)},
		"c2": {similar.New("R", "r", 0.5)},
	}}
	h := fuseEntries(context.Background(), entries, f, FuseOptions{})
	names := []string{h.Top[0].Name, h.Top[1].Name, h.Top[2].Name}
	if names[0] != "P" || names[1] != "Q" || names[2] != "R" {
		t.Errorf("tie order = %v, want [P Q R]", names)
	}
}

func TestFuse_TopNLimit(t *testing.T) {
	entries := entriesOf("anchor", "c1")
	var tracks []similar.Track
	for i := range 10 {
		tracks = append(tracks, similar.New(fmt.Sprintf("T%d", i), "x", float64(i)/10))
	}
	f := &mockFetcher{results: map[string][]similar.Track{"c1": tracks}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{})
	if len(h.Top) != DefaultTopN {
		t.Fatalf("Top len = %d, want %d", len(h.Top), DefaultTopN)
	}
	if h.Top[0].Name != "T9" {
		t.Errorf("Top[0] = %q, want T9", h.Top[0].Name)
	}

	h = fuseEntries(context.Background(), entries, f, FuseOptions{TopN: 2})
	if len(h.Top) != 2 {
		t.Errorf("Top len = %d, want 2", len(h.Top))
	}
}

func TestFuse_CandidatesAnnotated(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2", "c3")
	f := &mockFetcher{results: map[string][]similar.Track{
		"c1": {similar.New("c2", "Artist c2", 0.7)},
		"c3": {similar.New("c2", "Artist c2", 0.2), similar.New("c1", "Artist c1", 0.1)},
	}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{})
	if len(h.Candidates) != 3 {
		t.Fatalf("Candidates len = %d, want 3", len(h.Candidates))
	}
	want := map[string]float64{"c1": 0.1, "c2": 0.9, "c3": 0}
	for _, c := range h.Candidates {
		if math.Abs(c.HybridScore-want[c.Song.Name()]) > 1e-12 {
			t.Errorf("%s hybrid score = %f, want %f", c.Song.Name(), c.HybridScore, want[c.Song.Name()])
		}
	}
	if h.Candidates[0].Song.Name() != "c1" {
		t.Errorf("candidates must keep content order, got %q first", h.Candidates[0].Song.Name())
	}
}

func TestFuse_PartialFailure(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2", "c3")
	results := map[string][]similar.Track{
		"c1": {similar.New("X", "x", 0.5)},
		"c2": {similar.New("Y", "y", 0.9), similar.New("X", "x", 0.3)},
		"c3": {similar.New("Z", "z", 0.2)},
	}

	failing := &mockFetcher{results: results, errs: map[string]error{"c2": errProviderDown}}
	withFailure := fuseEntries(context.Background(), entries, failing, FuseOptions{})

	omitted := &mockFetcher{results: map[string][]similar.Track{"c1": results["c1"], "c3": results["c3"]}}
	withoutCandidate := fuseEntries(context.Background(), entries, omitted, FuseOptions{})

	if withFailure.Failed != 1 {
		t.Errorf("Failed = %d, want 1", withFailure.Failed)
	}
	if len(withFailure.Top) != len(withoutCandidate.Top) {
		t.Fatalf("Top len %d != %d", len(withFailure.Top), len(withoutCandidate.Top))
	}
	for i := range withFailure.Top {
		if withFailure.Top[i] != withoutCandidate.Top[i] {
			t.Errorf("Top[%d] = %+v, want %+v", i, withFailure.Top[i], withoutCandidate.Top[i])
		}
	}
}

func TestFuse_FailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

	entries := entriesOf("anchor", "c1")
	f := &mockFetcher{errs: map[string]error{"c1": errProviderDown}}
	h := fuseEntries(ctx, entries, f, FuseOptions{})

	if len(h.Top) != 0 {
		t.Errorf("expected empty ranking, got %+v", h.Top)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if logs.All()[0].ContextMap()["track"] != "c1" {
		t.Errorf("warning missing track field: %v", logs.All()[0].ContextMap())
	}
}

func TestFuse_CommutativeTotals(t *testing.T) {
	results := map[string][]similar.Track{
		"c1": {similar.New("X", "x", 0.25), similar.New("Y", "y", 0.5)},
		"c2": {similar.New("Y", "y", 0.125)},
		"c3": {similar.New("X", "x", 0.5), similar.New("Z", "z", 0.75)},
	}
	f := &mockFetcher{results: results}

	forward := fuseEntries(context.Background(), entriesOf("anchor", "c1", "c2", "c3"), f, FuseOptions{TopN: 10})
	reverse := fuseEntries(context.Background(), entriesOf("anchor", "c3", "c2", "c1"), f, FuseOptions{TopN: 10})

	totals := func(h Hybrid) map[string]float64 {
		m := map[string]float64{}
		for _, e := range h.Top {
			m[e.Name] = e.Score
		}
		return m
	}
	a, b := totals(forward), totals(reverse)
	if len(a) != len(b) {
		t.Fatalf("key sets differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if math.Abs(b[k]-v) > 1e-12 {
			t.Errorf("%s: %f vs %f", k, v, b[k])
		}
	}
}

func TestFuse_ConcurrentMatchesSequential(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2", "c3", "c4")
	delays := map[string]time.Duration{"c1": 30 * time.Millisecond, "c2": 0, "c3": 10 * time.Millisecond, "c4": 0}
	results := map[string][]similar.Track{
		"c1": {similar.New("P", "p1", 0.5)},
		"c2": {similar.New("Q", "q", 0.5), similar.New("P", "p2", 0.1)},
		"c3": {similar.New("R", "r", 0.5)},
		"c4": {similar.New("S", "s", 0.5)},
	}
	f := &mockFetcher{fn: func(ctx context.Context, _, track string) ([]similar.Track, error) {
		time.Sleep(delays[track])
		return results[track], nil
	}}

	seq := fuseEntries(context.Background(), entries, f, FuseOptions{TopN: 10})
	par := fuseEntries(context.Background(), entries, f, FuseOptions{TopN: 10, Concurrency: 4})

	if len(seq.Top) != len(par.Top) {
		t.Fatalf("len %d != %d", len(seq.Top), len(par.Top))
	}
	for i := range seq.Top {
		if seq.Top[i] != par.Top[i] {
			t.Errorf("Top[%d]: sequential %+v, concurrent %+v", i, seq.Top[i], par.Top[i])
		}
	}
	if par.Top[0].Name != "P" || par.Top[0].Artist != "p1" {
		t.Errorf("first-seen artist must follow candidate order, got %+v", par.Top[0])
	}
}

func TestFuse_TimeoutCountsAsFailure(t *testing.T) {
	entries := entriesOf("anchor", "slow", "fast")
	f := &mockFetcher{fn: func(ctx context.Context, _, track string) ([]similar.Track, error) {
		if track == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []similar.Track{similar.New("F", "f", 0.4)}, nil
	}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{Timeout: 20 * time.Millisecond, Concurrency: 2})
	if h.Failed != 1 {
		t.Errorf("Failed = %d, want 1", h.Failed)
	}
	if len(h.Top) != 1 || h.Top[0].Name != "F" {
		t.Errorf("Top = %+v", h.Top)
	}
}

func TestFuse_ConcurrencyLimit(t *testing.T) {
	entries := entriesOf("anchor", "c1", "c2", "c3", "c4", "c5", "c6")
	var inFlight, peak atomic.Int32
	f := &mockFetcher{fn: func(_ context.Context, _, _ string) ([]similar.Track, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}}

	fuseEntries(context.Background(), entries, f, FuseOptions{Concurrency: 2})
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestFuse_NoCandidates(t *testing.T) {
	f := &mockFetcher{}
	h := fuseEntries(context.Background(), entriesOf("anchor"), f, FuseOptions{})
	if len(h.Top) != 0 || len(h.Candidates) != 0 {
		t.Errorf("expected empty hybrid, got %+v", h)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetcher should not be called, got %v", f.calls)
	}
	h = fuseEntries(context.Background(), nil, f, FuseOptions{})
	if len(h.Top) != 0 {
		t.Errorf("expected empty hybrid for nil entries")
	}
}

func TestFuse_ExplicitAnchorExcluded(t *testing.T) {
	// The anchor shares its features with both candidates, so it is passed by name.
	cands := []Entry{
		{Song: mkSong("d1", "Dup One", "A", feats(1))},
		{Song: mkSong("d2", "Dup Two", "B", feats(1))},
	}
	f := &mockFetcher{results: map[string][]similar.Track{
		"Dup One": {similar.New("Target", "C", 0.9), similar.New("Other", "D", 0.3)},
	}}

	h := Fuse(context.Background(), "Target", cands, f, FuseOptions{})

	if _, ok := scoreOf(h, "Target"); ok {
		t.Errorf("resolved song must not be recommended back, Top = %+v", h.Top)
	}
	if len(h.Top) != 1 || h.Top[0].Name != "Other" {
		t.Errorf("Top = %+v, want only Other", h.Top)
	}
	if len(f.calls) != 2 {
		t.Errorf("every candidate must be looked up, calls = %v", f.calls)
	}
}

func TestFuse_TimeoutWithFetcherIgnoringContext(t *testing.T) {
	entries := entriesOf("anchor", "stuck", "fast")
	release := make(chan struct{})
	defer close(release)
	f := &mockFetcher{fn: func(_ context.Context, _, track string) ([]similar.Track, error) {
		if track == "stuck" {
			<-release
			return []similar.Track{similar.New("Late", "l", 0.8)}, nil
		}
		return []similar.Track{similar.New("F", "f", 0.4)}, nil
	}}

	start := time.Now()
	h := fuseEntries(context.Background(), entries, f, FuseOptions{Timeout: 30 * time.Millisecond, Concurrency: 2})
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("fuse blocked on a fetcher ignoring its deadline: %v", elapsed)
	}
	if h.Failed != 1 {
		t.Errorf("Failed = %d, want 1", h.Failed)
	}
	if _, ok := scoreOf(h, "Late"); ok {
		t.Errorf("result past the deadline must be discarded, Top = %+v", h.Top)
	}
	if len(h.Top) != 1 || h.Top[0].Name != "F" {
		t.Errorf("Top = %+v, want only F", h.Top)
	}
}

func TestFuse_LateSuccessCountsAsFailure(t *testing.T) {
	entries := entriesOf("anchor", "late")
	f := &mockFetcher{fn: func(ctx context.Context, _, _ string) ([]similar.Track, error) {
		<-ctx.Done()
		return []similar.Track{similar.New("Late", "l", 0.8)}, nil
	}}

	h := fuseEntries(context.Background(), entries, f, FuseOptions{Timeout: 10 * time.Millisecond})
	if h.Failed != 1 || len(h.Top) != 0 {
		t.Errorf("Failed = %d Top = %+v, want 1 failure and empty ranking", h.Failed, h.Top)
	}
}
