package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
	domcat "github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/song"
)

const (
	colSongID   = "song_id"
	colSongName = "song_name"
	colArtists  = "artists"
)

// Stats reports what a load read, dropped and joined.
type Stats struct {
	SongsRead    int
	FeaturesRead int
	Dropped      int
	Joined       int
}

// Source names the catalog files. ParquetPath, when set, wins over the TSV pair.
type Source struct {
	SongsPath    string
	FeaturesPath string
	ParquetPath  string
}

// Loader builds a catalog from files on disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a catalog loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load picks the Parquet or TSV source.
func (l *Loader) Load(src Source) (*domcat.Catalog, Stats, error) {
	switch {
	case src.ParquetPath != "":
		return l.LoadParquet(src.ParquetPath)
	case src.FeaturesPath == "" && strings.EqualFold(filepath.Ext(src.SongsPath), ".parquet"):
		return l.LoadParquet(src.SongsPath)
	case src.SongsPath == "" || src.FeaturesPath == "":
		return nil, Stats{}, fmt.Errorf("%w: songs and features paths are required", domain.ErrDataError)
	default:
		return l.LoadTSV(src.SongsPath, src.FeaturesPath)
	}
}

// LoadTSV reads the songs and acoustic-features tables and inner-joins them on song_id.
func (l *Loader) LoadTSV(songsPath, featuresPath string) (*domcat.Catalog, Stats, error) {
	songs, err := os.Open(filepath.Clean(songsPath))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: open songs: %w", domain.ErrDataError, err)
	}
	defer func() { _ = songs.Close() }()

	features, err := os.Open(filepath.Clean(featuresPath))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: open features: %w", domain.ErrDataError, err)
	}
	defer func() { _ = features.Close() }()

	return l.ReadTSV(songs, features)
}

type songRow struct {
	id      string
	name    string
	artists []Artist
}

// ReadTSV is LoadTSV over readers. The join keeps songs-table order.
func (l *Loader) ReadTSV(songsSrc, featuresSrc io.Reader) (*domcat.Catalog, Stats, error) {
	var st Stats

	songRows, err := l.readSongs(songsSrc, &st)
	if err != nil {
		return nil, st, err
	}
	featRows, err := l.readFeatures(featuresSrc, &st)
	if err != nil {
		return nil, st, err
	}

	out := make([]song.Song, 0, len(songRows))
	for _, r := range songRows {
		f, ok := featRows[r.id]
		if !ok {
			continue
		}
		primary := r.artists[0]
		s, err := song.New(r.id, r.name, primary.ID, primary.Name, f)
		if err != nil {
			st.Dropped++
			l.logger.Warn("Dropping invalid song", zap.String("song_id", r.id), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	st.Joined = len(out)

	return l.finish(out, st, "tsv")
}

func (l *Loader) finish(songs []song.Song, st Stats, format string) (*domcat.Catalog, Stats, error) {
	if len(songs) == 0 {
		return nil, st, fmt.Errorf("%w: no songs after join", domain.ErrDataError)
	}
	cat, err := domcat.New(songs)
	if err != nil {
		return nil, st, fmt.Errorf("build catalog: %w", err)
	}

	l.logger.Info("Catalog loaded",
		zap.String("format", format),
		zap.Int("songs_read", st.SongsRead),
		zap.Int("features_read", st.FeaturesRead),
		zap.Int("dropped", st.Dropped),
		zap.Int("joined", st.Joined),
	)
	return cat, st, nil
}

func (l *Loader) readSongs(src io.Reader, st *Stats) ([]songRow, error) {
	var rows []songRow
	seen := make(map[string]struct{})

	err := l.eachRow(src, "songs", []string{colSongID, colSongName, colArtists},
		func(line int, get func(string) string) {
			st.SongsRead++
			id := strings.TrimSpace(get(colSongID))
			if id == "" {
				l.dropRow(st, "songs", line, errors.New("empty song_id"))
				return
			}
			if _, dup := seen[id]; dup {
				l.dropRow(st, "songs", line, fmt.Errorf("duplicate song_id %q", id))
				return
			}
			artists, err := ParseArtists(get(colArtists))
			if err != nil {
				l.dropRow(st, "songs", line, err)
				return
			}
			seen[id] = struct{}{}
			rows = append(rows, songRow{id: id, name: get(colSongName), artists: artists})
		},
		func(err error) { st.SongsRead++; l.dropRow(st, "songs", lineOf(err), err) },
	)
	return rows, err
}

func (l *Loader) readFeatures(src io.Reader, st *Stats) (map[string]song.Features, error) {
	required := append([]string{colSongID}, song.FeatureNames[:]...)
	out := make(map[string]song.Features)

	err := l.eachRow(src, "features", required,
		func(line int, get func(string) string) {
			st.FeaturesRead++
			id := strings.TrimSpace(get(colSongID))
			if id == "" {
				l.dropRow(st, "features", line, errors.New("empty song_id"))
				return
			}
			if _, dup := out[id]; dup {
				l.dropRow(st, "features", line, fmt.Errorf("duplicate song_id %q", id))
				return
			}
			var f song.Features
			for i, name := range song.FeatureNames {
				v, err := strconv.ParseFloat(strings.TrimSpace(get(name)), 64)
				if err != nil {
					l.dropRow(st, "features", line, fmt.Errorf("column %s: %w", name, err))
					return
				}
				f[i] = v
			}
			out[id] = f
		},
		func(err error) { st.FeaturesRead++; l.dropRow(st, "features", lineOf(err), err) },
	)
	return out, err
}

func (l *Loader) dropRow(st *Stats, table string, line int, err error) {
	st.Dropped++
	l.logger.Warn("Dropping malformed row",
		zap.String("table", table),
		zap.Int("line", line),
		zap.Error(err),
	)
}

// eachRow reads a tab-delimited table with a header row. Records whose field
// count differs from the header are reported through onBad, as are csv parse errors.
func (l *Loader) eachRow(
	src io.Reader,
	table string,
	required []string,
	onRow func(line int, get func(string) string),
	onBad func(err error),
) error {
	r := csv.NewReader(src)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: read %s header: %w", domain.ErrDataError, table, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return fmt.Errorf("%w: %s table has no %q column", domain.ErrDataError, table, c)
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				onBad(err)
				continue
			}
			return fmt.Errorf("%w: read %s: %w", domain.ErrDataError, table, err)
		}
		line, _ := r.FieldPos(0)
		if len(rec) != len(header) {
			onBad(&csv.ParseError{StartLine: line, Line: line, Err: fmt.Errorf("expected %d fields, got %d", len(header), len(rec))})
			continue
		}
		onRow(line, func(name string) string { return rec[cols[name]] })
	}
}

func lineOf(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
