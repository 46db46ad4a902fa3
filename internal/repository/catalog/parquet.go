package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
	domcat "github.com/kailas-cloud/songdex/internal/domain/catalog"
	"github.com/kailas-cloud/songdex/internal/domain/song"
)

// parquetRow is one pre-joined catalog row.
type parquetRow struct {
	SongID           string  `parquet:"song_id"`
	SongName         string  `parquet:"song_name"`
	ArtistID         string  `parquet:"artist_id"`
	ArtistName       string  `parquet:"artist_name"`
	Danceability     float64 `parquet:"danceability"`
	Energy           float64 `parquet:"energy"`
	Loudness         float64 `parquet:"loudness"`
	Speechiness      float64 `parquet:"speechiness"`
	Acousticness     float64 `parquet:"acousticness"`
	Instrumentalness float64 `parquet:"instrumentalness"`
	Liveness         float64 `parquet:"liveness"`
	Valence          float64 `parquet:"valence"`
	Tempo            float64 `parquet:"tempo"`
}

func (r *parquetRow) features() song.Features {
	return song.Features{
		r.Danceability, r.Energy, r.Loudness, r.Speechiness, r.Acousticness,
		r.Instrumentalness, r.Liveness, r.Valence, r.Tempo,
	}
}

const parquetBatch = 1000

var parquetKeyColumns = []string{"song_id", "song_name", "artist_id", "artist_name"}

// checkParquetSchema rejects files missing a required column; the row reader
// would zero-fill it otherwise.
func checkParquetSchema(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat parquet: %w", domain.ErrDataError, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return fmt.Errorf("%w: open parquet: %w", domain.ErrDataError, err)
	}
	schema := pf.Schema()
	for _, cols := range [][]string{parquetKeyColumns, song.FeatureNames[:]} {
		for _, name := range cols {
			if _, ok := schema.Lookup(name); !ok {
				return fmt.Errorf("%w: parquet column %q missing", domain.ErrDataError, name)
			}
		}
	}
	return nil
}

// LoadParquet reads a pre-joined catalog file. Rows stream in batches.
func (l *Loader) LoadParquet(path string) (*domcat.Catalog, Stats, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: open parquet: %w", domain.ErrDataError, err)
	}
	defer func() { _ = f.Close() }()

	if err := checkParquetSchema(f); err != nil {
		return nil, Stats{}, err
	}

	rd := parquet.NewGenericReader[parquetRow](f)
	defer func() { _ = rd.Close() }()

	var (
		st   Stats
		out  []song.Song
		seen = make(map[string]struct{})
		buf  = make([]parquetRow, parquetBatch)
	)
	for {
		n, readErr := rd.Read(buf)
		for i := range n {
			row := &buf[i]
			st.SongsRead++
			st.FeaturesRead++
			if _, dup := seen[row.SongID]; dup {
				l.dropRow(&st, "parquet", st.SongsRead, fmt.Errorf("duplicate song_id %q", row.SongID))
				continue
			}
			s, err := song.New(row.SongID, row.SongName, row.ArtistID, row.ArtistName, row.features())
			if err != nil {
				l.dropRow(&st, "parquet", st.SongsRead, err)
				continue
			}
			seen[row.SongID] = struct{}{}
			out = append(out, s)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, st, fmt.Errorf("%w: read parquet rows: %w", domain.ErrDataError, readErr)
		}
	}
	st.Joined = len(out)

	l.logger.Debug("Parquet catalog read", zap.String("path", path), zap.Int64("rows", rd.NumRows()))
	return l.finish(out, st, "parquet")
}
