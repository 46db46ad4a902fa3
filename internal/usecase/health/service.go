package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing; content recommendations still work.
	Degraded Status = "degraded"
	// Unhealthy indicates no catalog is being served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	CatalogSize int
}

// Service coordinates health checks.
type Service struct {
	catalog  CatalogSource
	cache    CachePinger
	provider ProviderChecker
}

// New creates a Service. cache and provider can be nil.
func New(catalog CatalogSource, cache CachePinger, provider ProviderChecker) *Service {
	return &Service{catalog: catalog, cache: cache, provider: provider}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	size := 0
	if c := s.catalog.Catalog(); c != nil {
		size = c.Len()
	}
	if size > 0 {
		checks["catalog"] = CheckOK
	} else {
		checks["catalog"] = CheckError
		status = Unhealthy
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	if s.provider != nil {
		if err := s.provider.HealthCheck(ctx); err != nil {
			checks["lastfm"] = CheckError
		} else {
			checks["lastfm"] = CheckOK
		}
	}

	if status == Healthy {
		for _, v := range checks {
			if v == CheckError {
				status = Degraded
				break
			}
		}
	}

	return Report{Status: status, Checks: checks, CatalogSize: size}
}
