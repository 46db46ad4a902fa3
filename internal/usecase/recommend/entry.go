package recommend

import "github.com/kailas-cloud/songdex/internal/domain/song"

// Entry is one content-based recommendation.
type Entry struct {
	Song     song.Song
	Distance float64
	// Features is the song's raw acoustic feature snapshot.
	Features song.Features
}

// HybridEntry is one externally reported song with its accumulated match score.
type HybridEntry struct {
	Name   string
	Artist string
	Score  float64
}

// Candidate is a content-based entry annotated with its hybrid score.
type Candidate struct {
	Entry
	HybridScore float64
}

// Hybrid is the fused output: the content candidates after the anchor, annotated,
// and the top of the full fused ranking.
type Hybrid struct {
	Candidates []Candidate
	Top        []HybridEntry
	// Failed counts candidates whose external lookup failed.
	Failed int
}

// Result bundles the content list (anchor first) with its hybrid view.
type Result struct {
	Entries []Entry
	Hybrid  Hybrid
}
