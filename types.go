package songdex

// FeatureNames lists the acoustic feature keys of Song.Features.
var FeatureNames = []string{
	"danceability",
	"energy",
	"loudness",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
}

// Song is a catalog entry.
type Song struct {
	ID       string
	Name     string
	ArtistID string
	Artist   string
	// Features holds the raw acoustic values keyed by FeatureNames.
	Features map[string]float64
}

// Recommendation is one content-based neighbour.
type Recommendation struct {
	Song
	// Distance is the Euclidean distance in standardized feature space.
	Distance float64
	// HybridScore is the summed external match score; zero outside Hybrid.
	HybridScore float64
}

// Result is a content-based recommendation list.
// Anchor is the song the query resolved to; nil when nothing matched.
type Result struct {
	Query           string
	Anchor          *Recommendation
	Recommendations []Recommendation
}

// Empty reports whether the query matched nothing.
func (r Result) Empty() bool { return r.Anchor == nil }

// Track is a song reported as similar by an external provider.
type Track struct {
	Name   string
	Artist string
	// Match is the provider's similarity in [0, 1].
	Match float64
}

// Scored is one entry of the fused ranking.
type Scored struct {
	Name   string
	Artist string
	Score  float64
}

// HybridResult is a content-based list annotated with external scores,
// plus the top of the fused ranking.
type HybridResult struct {
	Result
	Top []Scored
	// FailedLookups counts neighbours whose external lookup failed.
	FailedLookups int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status      string            // "ok", "degraded", "error"
	Checks      map[string]string // component: "ok"/"error"
	CatalogSize int
}
