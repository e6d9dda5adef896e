package services

import (
	"context"
	"fmt"
	"time"

	"price-alert-engine/pkg/cache"
)

// HealthStatus represents the health status of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// upstreamPinger is the slice of the transport the checker needs.
type upstreamPinger interface {
	IsHealthy(ctx context.Context) error
}

// HealthChecker aggregates health probes for the engine's
// collaborators: the alert repository, the remote cache tier and the
// upstream market data API. A dead remote cache tier is only degraded,
// never unhealthy, since the cache works local-only.
type HealthChecker struct {
	repo     Repository
	cache    *cache.Cache
	upstream upstreamPinger
}

// NewHealthChecker creates a health checker over the given collaborators.
func NewHealthChecker(repo Repository, c *cache.Cache, upstream upstreamPinger) *HealthChecker {
	return &HealthChecker{
		repo:     repo,
		cache:    c,
		upstream: upstream,
	}
}

// CheckRepository probes the alert repository.
func (hc *HealthChecker) CheckRepository(ctx context.Context) *HealthCheck {
	return runCheck(ctx, "repository", func(ctx context.Context) (HealthStatus, string) {
		if err := hc.repo.Ping(ctx); err != nil {
			return HealthStatusUnhealthy, fmt.Sprintf("ping failed: %v", err)
		}
		return HealthStatusHealthy, "reachable"
	})
}

// CheckCache probes the remote cache tier.
func (hc *HealthChecker) CheckCache(ctx context.Context) *HealthCheck {
	return runCheck(ctx, "cache", func(ctx context.Context) (HealthStatus, string) {
		if err := hc.cache.Ping(ctx); err != nil {
			return HealthStatusDegraded, fmt.Sprintf("remote tier unreachable, local tier only: %v", err)
		}
		return HealthStatusHealthy, "all tiers reachable"
	})
}

// CheckUpstream probes the market data endpoint.
func (hc *HealthChecker) CheckUpstream(ctx context.Context) *HealthCheck {
	return runCheck(ctx, "upstream", func(ctx context.Context) (HealthStatus, string) {
		if err := hc.upstream.IsHealthy(ctx); err != nil {
			return HealthStatusUnhealthy, err.Error()
		}
		return HealthStatusHealthy, "reachable"
	})
}

// GetDetailedHealth returns comprehensive health information
func (hc *HealthChecker) GetDetailedHealth(ctx context.Context) map[string]*HealthCheck {
	return map[string]*HealthCheck{
		"repository": hc.CheckRepository(ctx),
		"cache":      hc.CheckCache(ctx),
		"upstream":   hc.CheckUpstream(ctx),
	}
}

// runCheck times a probe under its own short timeout.
func runCheck(ctx context.Context, service string, probe func(context.Context) (HealthStatus, string)) *HealthCheck {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, message := probe(probeCtx)
	return &HealthCheck{
		Service:      service,
		Status:       status,
		Message:      message,
		ResponseTime: time.Since(start),
		Timestamp:    start,
	}
}
