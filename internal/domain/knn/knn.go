// Package knn answers exact k-nearest-neighbour queries under Euclidean distance.
package knn

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kailas-cloud/songdex/internal/domain"
)

// DefaultK is the neighbour count used when callers do not choose one.
const DefaultK = 5

// Neighbor is one query hit: the catalog row and its distance to the query.
type Neighbor struct {
	Pos      int
	Distance float64
}

// Index is a brute-force Euclidean index over fixed-dimension vectors.
// It is read-only after Build and safe for concurrent queries.
type Index struct {
	vectors [][]float64
	dim     int
}

// Build copies the vectors into a new index. All vectors must share one dimension.
func Build(vectors [][]float64) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: cannot build index on zero vectors", domain.ErrDataError)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimension vectors", domain.ErrDataError)
	}
	cp := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", domain.ErrDataError, i, len(v), dim)
		}
		cp[i] = append([]float64(nil), v...)
	}
	return &Index{vectors: cp, dim: dim}, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int { return len(x.vectors) }

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Query returns the k nearest vectors ascending by distance; ties keep insertion order.
// k larger than the index is clamped to the index size.
func (x *Index) Query(vec []float64, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidK, k)
	}
	if len(vec) != x.dim {
		return nil, fmt.Errorf("%w: query dimension %d, want %d", domain.ErrDataError, len(vec), x.dim)
	}
	k = min(k, len(x.vectors))

	all := make([]Neighbor, len(x.vectors))
	for i, v := range x.vectors {
		all[i] = Neighbor{Pos: i, Distance: floats.Distance(vec, v, 2)}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	return all[:k:k], nil
}
