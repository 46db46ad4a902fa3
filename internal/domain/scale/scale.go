// Package scale standardizes acoustic features to zero mean and unit variance.
package scale

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/songdex/internal/domain"
	"github.com/kailas-cloud/songdex/internal/domain/song"
)

// Scaler holds the fitted per-feature mean and population standard deviation.
// It is immutable after Fit.
type Scaler struct {
	mean song.Features
	std  song.Features
}

// Fit computes per-column statistics over all rows.
// Standard deviation uses the population divisor N.
// A zero-variance column is fatal: it returns a DegenerateFeatureError.
func Fit(rows []song.Features) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: cannot fit scaler on zero rows", domain.ErrDataError)
	}

	s := &Scaler{}
	col := make([]float64, len(rows))
	for j := range song.NumFeatures {
		for i := range rows {
			col[i] = rows[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			return nil, domain.NewDegenerateFeature(song.FeatureNames[j], std)
		}
		s.mean[j] = mean
		s.std[j] = std
	}
	return s, nil
}

// Transform applies (x - mean) / std element-wise.
func (s *Scaler) Transform(f song.Features) []float64 {
	out := make([]float64, song.NumFeatures)
	for j := range out {
		out[j] = (f[j] - s.mean[j]) / s.std[j]
	}
	return out
}

// TransformAll transforms every row in order.
func (s *Scaler) TransformAll(rows []song.Features) [][]float64 {
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = s.Transform(rows[i])
	}
	return out
}

// Mean returns the fitted per-feature means.
func (s *Scaler) Mean() song.Features { return s.mean }

// StdDev returns the fitted per-feature standard deviations.
func (s *Scaler) StdDev() song.Features { return s.std }
