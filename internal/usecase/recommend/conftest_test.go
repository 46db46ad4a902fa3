package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/domain/song"
)

// mockFetcher returns canned results keyed by track name.
type mockFetcher struct {
	mu      sync.Mutex
	results map[string][]similar.Track
	errs    map[string]error
	calls   []string
	fn      func(ctx context.Context, artist, track string) ([]similar.Track, error)
}

func (m *mockFetcher) Similar(ctx context.Context, artist, track string) ([]similar.Track, error) {
	m.mu.Lock()
	m.calls = append(m.calls, track)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, artist, track)
	}
	if err, ok := m.errs[track]; ok {
		return nil, err
	}
	return m.results[track], nil
}

var errProviderDown = errors.New("provider down")

// feats builds a feature vector where every column differs across i.
func feats(i float64) song.Features {
	return song.Features{
		0.1 * i, 0.05*i + 0.1, -10 + i, 0.01*i + 0.02, 1 - 0.1*i,
		0.02 * i, 0.3 + 0.01*i, 0.5 - 0.03*i, 90 + 7*i,
	}
}

func mkSong(id, name, artist string, f song.Features) song.Song {
	return song.Reconstruct(id, name, "a-"+artist, artist, f)
}

func newTestCatalog(t *testing.T, songs ...song.Song) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(songs)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func newTestEngine(t *testing.T, k int, songs ...song.Song) *Engine {
	t.Helper()
	e, err := NewEngine(newTestCatalog(t, songs...), k)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func entriesOf(names ...string) []Entry {
	out := make([]Entry, len(names))
	for i, n := range names {
		s := mkSong(n, n, "Artist "+n, feats(float64(i)))
		out[i] = Entry{Song: s, Distance: float64(i), Features: s.Features()}
	}
	return out
}

// fuseEntries fuses a content list whose entry 0 is the anchor.
func fuseEntries(ctx context.Context, entries []Entry, f Fetcher, opts FuseOptions) Hybrid {
	if len(entries) == 0 {
		return Fuse(ctx, "", nil, f, opts)
	}
	return Fuse(ctx, entries[0].Song.Name(), entries[1:], f, opts)
}
