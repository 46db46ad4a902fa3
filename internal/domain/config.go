package domain

// KeyPrefix namespaces every key songdex writes to the cache store.
const KeyPrefix = "songdex:"

// RecommendConfig holds engine defaults shared by the server, the CLI and the library.
type RecommendConfig struct {
	K           int
	TopN        int
	Concurrency int
}

// DefaultRecommendConfig returns k=5 neighbours (anchor included), top 5 hybrid entries
// and sequential external lookups.
func DefaultRecommendConfig() RecommendConfig {
	return RecommendConfig{
		K:           5,
		TopN:        5,
		Concurrency: 1,
	}
}
