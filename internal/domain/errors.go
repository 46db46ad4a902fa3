package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataError signals a malformed catalog or unusable input rows.
	ErrDataError = errors.New("data error")
	// ErrDegenerateFeature signals a zero-variance feature column.
	ErrDegenerateFeature = errors.New("degenerate feature")
	// ErrExternalFetch signals a failed similar-tracks lookup for one candidate.
	ErrExternalFetch = errors.New("external fetch failed")
	// ErrInvalidK signals a non-positive neighbour count.
	ErrInvalidK = errors.New("invalid k")
	// ErrInvalidQuery signals an unusable query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrHybridUnavailable signals that no similar-tracks provider is configured.
	ErrHybridUnavailable = errors.New("hybrid recommendations not configured")
	// ErrQuotaExceeded signals that the provider's request quota is used up.
	ErrQuotaExceeded = errors.New("lookup quota exceeded")
)

// DegenerateFeatureError names the feature column whose variance is zero.
type DegenerateFeatureError struct {
	Feature string
	StdDev  float64
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("%s: %q has standard deviation %g", ErrDegenerateFeature.Error(), e.Feature, e.StdDev)
}

func (e *DegenerateFeatureError) Unwrap() error { return ErrDegenerateFeature }

// NewDegenerateFeature creates a degenerate feature error.
func NewDegenerateFeature(feature string, stdDev float64) error {
	return &DegenerateFeatureError{Feature: feature, StdDev: stdDev}
}
