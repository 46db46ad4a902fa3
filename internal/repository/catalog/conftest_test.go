package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const songsHeader = "song_id\tsong_name\tbillboard\tartists\tpopularity"

// featuresHeader deliberately lists the features in a different order than the vector.
const featuresHeader = "song_id\tduration_ms\tacousticness\tdanceability\tenergy\t" +
	"instrumentalness\tliveness\tloudness\tspeechiness\tvalence\ttempo"

func songLine(id, name, artistID, artist string) string {
	return fmt.Sprintf("%s\t%s\t{'rank': 1}\t{'%s': '%s'}\t50", id, name, artistID, artist)
}

// featureLine encodes danceability = base and every other column as base + offset.
func featureLine(id string, base float64) string {
	return fmt.Sprintf("%s\t200000\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%g",
		id,
		base+0.4, // acousticness
		base,     // danceability
		base+0.1, // energy
		base+0.5, // instrumentalness
		base+0.6, // liveness
		base-10,  // loudness
		base+0.3, // speechiness
		base+0.7, // valence
		base+100, // tempo
	)
}

func table(header string, lines ...string) *strings.Reader {
	return strings.NewReader(header + "\n" + strings.Join(lines, "\n") + "\n")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}
