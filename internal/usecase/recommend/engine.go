package recommend

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/knn"
	"github.com/kailas-cloud/songdex/internal/domain/scale"
)

// state is everything fitted from one catalog. Never mutated after build.
type state struct {
	catalog *catalog.Catalog
	scaler  *scale.Scaler
	index   *knn.Index
}

func buildState(cat *catalog.Catalog) (*state, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	rows := cat.Features()

	scaler, err := scale.Fit(rows)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}

	index, err := knn.Build(scaler.TransformAll(rows))
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	return &state{catalog: cat, scaler: scaler, index: index}, nil
}

// Engine produces content-based recommendations from a fitted catalog.
// Safe for concurrent use; Reload swaps the fitted state atomically.
type Engine struct {
	state    atomic.Pointer[state]
	defaultK int
}

// NewEngine fits the scaler and builds the index once. k <= 0 selects knn.DefaultK.
func NewEngine(cat *catalog.Catalog, k int) (*Engine, error) {
	st, err := buildState(cat)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = knn.DefaultK
	}
	e := &Engine{defaultK: k}
	e.state.Store(st)
	return e, nil
}

// Reload refits on a new catalog. On error the previous state stays in place.
func (e *Engine) Reload(cat *catalog.Catalog) error {
	st, err := buildState(cat)
	if err != nil {
		return err
	}
	e.state.Store(st)
	return nil
}

// Catalog returns the catalog currently served.
func (e *Engine) Catalog() *catalog.Catalog { return e.state.Load().catalog }

// Scaler returns the scaler currently served.
func (e *Engine) Scaler() *scale.Scaler { return e.state.Load().scaler }

// DefaultK returns the neighbour count used when callers pass k <= 0.
func (e *Engine) DefaultK() int { return e.defaultK }

// Recommend resolves the query and returns up to k nearest songs, ascending by distance.
// The resolved song itself comes back as entry 0 (distance 0) because it is part of the catalog.
// No match is a normal outcome: nil entries, nil error.
func (e *Engine) Recommend(ctx context.Context, query string, k int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = e.defaultK
	}
	st := e.state.Load()

	pos := st.catalog.ResolveIndex(query)
	if pos < 0 {
		return nil, nil
	}
	anchor := st.catalog.At(pos)

	neighbors, err := st.index.Query(st.scaler.Transform(anchor.Features()), k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	entries := make([]Entry, len(neighbors))
	for i, n := range neighbors {
		s := st.catalog.At(n.Pos)
		entries[i] = Entry{Song: s, Distance: n.Distance, Features: s.Features()}
	}

	return anchorFirst(entries, Entry{Song: anchor, Distance: 0, Features: anchor.Features()}), nil
}

// anchorFirst puts the resolved song at entry 0 without changing the list length.
// Songs with identical features tie at distance 0, so the index may rank others
// ahead of it or leave it out of a full tie block entirely.
func anchorFirst(entries []Entry, anchor Entry) []Entry {
	id := anchor.Song.ID()
	if entries[0].Song.ID() == id {
		return entries
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Song.ID() == id {
			copy(entries[1:i+1], entries[0:i])
			entries[0] = anchor
			return entries
		}
	}
	out := make([]Entry, 0, len(entries))
	out = append(out, anchor)
	return append(out, entries[:len(entries)-1]...)
}
