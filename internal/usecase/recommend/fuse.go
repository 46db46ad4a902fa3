package recommend

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/songdex/internal/domain/similar"
	"github.com/kailas-cloud/songdex/internal/logger"
)

// DefaultTopN is the size of the fused top list.
const DefaultTopN = 5

// FuseOptions tunes external lookups during fusion.
type FuseOptions struct {
	// TopN limits Hybrid.Top. <= 0 selects DefaultTopN.
	TopN int
	// Timeout bounds each external call. 0 disables the per-call deadline.
	Timeout time.Duration
	// Concurrency is the number of lookups in flight. <= 1 runs them sequentially.
	Concurrency int
}

type fetchOutcome struct {
	tracks []similar.Track
	err    error
}

// Fuse queries the fetcher for every candidate and sums the reported match
// scores per song name.
// A failed or timed-out lookup is logged and contributes nothing. Records naming
// the anchor (case-insensitive) are skipped. Ranking is by descending total; ties
// keep first-seen order, where "first" follows candidate order regardless of
// which lookup finished first.
func Fuse(ctx context.Context, anchor string, cands []Entry, fetcher Fetcher, opts FuseOptions) Hybrid {
	if len(cands) == 0 {
		return Hybrid{}
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	outcomes := fetchAll(ctx, cands, fetcher, opts)

	log := logger.FromContext(ctx)
	totals := make(map[string]*HybridEntry)
	var order []string
	failed := 0

	for i, out := range outcomes {
		if out.err != nil {
			failed++
			log.Warn("Similar tracks lookup failed, skipping candidate",
				zap.String("track", cands[i].Song.Name()),
				zap.String("artist", cands[i].Song.ArtistName()),
				zap.Error(out.err),
			)
			continue
		}
		for _, t := range out.tracks {
			if strings.EqualFold(t.Name(), anchor) {
				continue
			}
			if he, ok := totals[t.Name()]; ok {
				he.Score += t.Match()
				continue
			}
			totals[t.Name()] = &HybridEntry{Name: t.Name(), Artist: t.Artist(), Score: t.Match()}
			order = append(order, t.Name())
		}
	}

	ranked := make([]HybridEntry, len(order))
	for i, name := range order {
		ranked[i] = *totals[name]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	annotated := make([]Candidate, len(cands))
	for i, c := range cands {
		annotated[i] = Candidate{Entry: c}
		if he, ok := totals[c.Song.Name()]; ok {
			annotated[i].HybridScore = he.Score
		}
	}

	return Hybrid{Candidates: annotated, Top: ranked, Failed: failed}
}

// fetchAll runs one lookup per candidate and returns outcomes in candidate order.
// A lookup still running at its deadline is abandoned and counts as failed; its
// goroutine exits once the fetcher returns.
func fetchAll(ctx context.Context, cands []Entry, fetcher Fetcher, opts FuseOptions) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(cands))

	var g errgroup.Group
	g.SetLimit(max(opts.Concurrency, 1))

	for i := range cands {
		g.Go(func() error {
			callCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			outcomes[i] = fetchOne(callCtx, fetcher, cands[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func fetchOne(ctx context.Context, fetcher Fetcher, cand Entry) fetchOutcome {
	done := make(chan fetchOutcome, 1)
	go func() {
		s := cand.Song
		tracks, err := fetcher.Similar(ctx, s.ArtistName(), s.Name())
		done <- fetchOutcome{tracks: tracks, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && ctx.Err() != nil {
			return fetchOutcome{err: ctx.Err()}
		}
		return out
	case <-ctx.Done():
		return fetchOutcome{err: ctx.Err()}
	}
}
