package songdex

import "github.com/kailas-cloud/songdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDataError         = domain.ErrDataError
	ErrDegenerateFeature = domain.ErrDegenerateFeature
	ErrExternalFetch     = domain.ErrExternalFetch
	ErrInvalidK          = domain.ErrInvalidK
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrHybridUnavailable = domain.ErrHybridUnavailable
	ErrQuotaExceeded     = domain.ErrQuotaExceeded
)
