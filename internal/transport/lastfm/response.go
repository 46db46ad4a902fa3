package lastfm

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// similarResponse is the track.getsimilar payload. Error replies share the
// top level with an "error" code and "message".
type similarResponse struct {
	SimilarTracks *struct {
		Track trackList `json:"track"`
	} `json:"similartracks"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type apiTrack struct {
	Name   string     `json:"name"`
	Match  matchValue `json:"match"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// trackList accepts a JSON array or, for single results, a bare object.
type trackList []apiTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '{':
		var one apiTrack
		if err := json.Unmarshal(data, &one); err != nil {
			return err //nolint:wrapcheck // surfaced by the outer decode
		}
		*l = trackList{one}
		return nil
	default:
		var many []apiTrack
		if err := json.Unmarshal(data, &many); err != nil {
			return err //nolint:wrapcheck // surfaced by the outer decode
		}
		*l = many
		return nil
	}
}

// matchValue is the similarity score, sent as a number or a numeric string.
type matchValue float64

func (m *matchValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err //nolint:wrapcheck // surfaced by the outer decode
		}
		if s == "" {
			*m = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("match %q: %w", s, err)
		}
		*m = matchValue(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err //nolint:wrapcheck // surfaced by the outer decode
	}
	*m = matchValue(v)
	return nil
}
