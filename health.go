package songdex

import (
	"context"

	healthuc "github.com/kailas-cloud/songdex/internal/usecase/health"
)

// Health checks the catalog and, when configured, the cache and the Last.fm breaker.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:      string(report.Status),
		Checks:      checks,
		CatalogSize: report.CatalogSize,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
