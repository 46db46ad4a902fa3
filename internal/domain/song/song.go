package song

import (
	"fmt"
	"math"
	"strings"
)

// NumFeatures is the number of acoustic features per song.
const NumFeatures = 9

// FeatureNames lists the acoustic feature columns in vector order.
var FeatureNames = [NumFeatures]string{
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

// Features is the fixed-order acoustic feature vector of a song.
type Features [NumFeatures]float64

// Slice returns a copy of the features as a slice.
func (f Features) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, f[:])
	return out
}

// Map returns the features keyed by column name.
func (f Features) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		m[name] = f[i]
	}
	return m
}

// FeatureIndex returns the vector position of a feature column, or -1.
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Song is a catalog entry (immutable value object).
type Song struct {
	id         string
	name       string
	artistID   string
	artistName string
	features   Features
}

// New validates and creates a Song.
// ID and name must be non-blank; every feature must be a finite number.
func New(id, name, artistID, artistName string, features Features) (Song, error) {
	if strings.TrimSpace(id) == "" {
		return Song{}, fmt.Errorf("song ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return Song{}, fmt.Errorf("song %s: name is required", id)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Song{}, fmt.Errorf("song %s: feature %s is not a finite number", id, FeatureNames[i])
		}
	}
	return Reconstruct(id, name, artistID, artistName, features), nil
}

// Reconstruct creates a Song without validation (storage hydration).
func Reconstruct(id, name, artistID, artistName string, features Features) Song {
	return Song{id: id, name: name, artistID: artistID, artistName: artistName, features: features}
}

// ID returns the song identifier.
func (s *Song) ID() string { return s.id }

// Name returns the song title.
func (s *Song) Name() string { return s.name }

// ArtistID returns the primary artist identifier.
func (s *Song) ArtistID() string { return s.artistID }

// ArtistName returns the primary artist name.
func (s *Song) ArtistName() string { return s.artistName }

// Features returns a copy of the acoustic feature vector.
func (s *Song) Features() Features { return s.features }
