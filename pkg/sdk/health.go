package lectern

import (
	"context"

	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
)

// HealthStatus is the outcome of Client.Health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // "database", "index", "embedding" -> "ok" or "error"
}

// OK reports whether every check passed.
func (h HealthStatus) OK() bool {
	return h.Status == string(healthuc.Healthy)
}

// HealthChecker may be implemented by an Embedder to join Client.Health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes Redis, the passage index and, when it supports it, the embedder.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, result := range report.Checks {
		h.Checks[name] = string(result)
	}
	return h
}
