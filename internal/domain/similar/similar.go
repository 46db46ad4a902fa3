package similar

import "math"

// Track is one record returned by the external similar-tracks service.
type Track struct {
	name   string
	artist string
	match  float64
}

// New creates a track record. Match is clamped to [0, 1]; NaN becomes 0.
func New(name, artist string, match float64) Track {
	switch {
	case math.IsNaN(match) || match < 0:
		match = 0
	case match > 1:
		match = 1
	}
	return Track{name: name, artist: artist, match: match}
}

// Name returns the track title as reported by the service.
func (t *Track) Name() string { return t.name }

// Artist returns the artist name as reported by the service.
func (t *Track) Artist() string { return t.artist }

// Match returns the similarity score in [0, 1].
func (t *Track) Match() float64 { return t.match }
