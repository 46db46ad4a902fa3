package health

import (
	"context"

	"github.com/kailas-cloud/songdex/internal/domain/catalog"
)

// CatalogSource exposes the catalog currently served.
type CatalogSource interface {
	Catalog() *catalog.Catalog
}

// CachePinger checks similar-tracks cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks similar-tracks provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
