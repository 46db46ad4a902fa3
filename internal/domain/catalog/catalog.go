package catalog

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/song"
)

// Catalog is the ordered, read-only song collection. Position is the row index
// used by the neighbour index.
type Catalog struct {
	songs []song.Song
	byID  map[string]int
}

// New creates a catalog. Songs keep their input order; IDs must be unique.
func New(songs []song.Song) (*Catalog, error) {
	if len(songs) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", domain.ErrDataError)
	}
	byID := make(map[string]int, len(songs))
	for i := range songs {
		id := songs[i].ID()
		if prev, ok := byID[id]; ok {
			return nil, fmt.Errorf("%w: duplicate song id %q at rows %d and %d", domain.ErrDataError, id, prev, i)
		}
		byID[id] = i
	}
	cp := make([]song.Song, len(songs))
	copy(cp, songs)
	return &Catalog{songs: cp, byID: byID}, nil
}

// Len returns the number of songs.
func (c *Catalog) Len() int { return len(c.songs) }

// At returns the song at the given row.
func (c *Catalog) At(i int) song.Song { return c.songs[i] }

// Get returns a song by ID.
func (c *Catalog) Get(id string) (song.Song, bool) {
	i, ok := c.byID[id]
	if !ok {
		return song.Song{}, false
	}
	return c.songs[i], true
}

// Features returns every row's raw feature vector in catalog order.
func (c *Catalog) Features() []song.Features {
	out := make([]song.Features, len(c.songs))
	for i := range c.songs {
		out[i] = c.songs[i].Features()
	}
	return out
}

// Resolve maps free text to the first song whose name contains it, ignoring case.
// Ambiguous queries are not disambiguated. A blank query matches nothing.
func (c *Catalog) Resolve(query string) (song.Song, bool) {
	i := c.ResolveIndex(query)
	if i < 0 {
		return song.Song{}, false
	}
	return c.songs[i], true
}

// ResolveIndex is Resolve returning the row, or -1 when nothing matches.
func (c *Catalog) ResolveIndex(query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return -1
	}
	for i := range c.songs {
		if strings.Contains(strings.ToLower(c.songs[i].Name()), q) {
			return i
		}
	}
	return -1
}
