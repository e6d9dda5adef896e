package handlers

import (
	"net/http"
	"time"

	"price-alert-engine/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *services.HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *services.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus            `json:"status"`
	Timestamp time.Time                        `json:"timestamp"`
	Services  map[string]*services.HealthCheck `json:"services"`
	Version   string                           `json:"version,omitempty"`
}

// GetHealth returns the overall health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	serviceChecks := h.checker.GetDetailedHealth(c.Request.Context())

	// Determine overall status
	overallStatus := services.HealthStatusHealthy
	for _, check := range serviceChecks {
		if check.Status == services.HealthStatusUnhealthy {
			overallStatus = services.HealthStatusUnhealthy
			break
		} else if check.Status == services.HealthStatusDegraded && overallStatus == services.HealthStatusHealthy {
			overallStatus = services.HealthStatusDegraded
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  serviceChecks,
		Version:   "1.0.0",
	}

	// Degraded still returns 200: the engine keeps evaluating with the
	// local cache tier only.
	statusCode := http.StatusOK
	if overallStatus == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// GetLiveness returns a simple liveness check
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness returns readiness status. The engine is ready when the
// alert repository is reachable; the cache and upstream can degrade
// without taking it out of rotation.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	repoHealth := h.checker.CheckRepository(c.Request.Context())

	if repoHealth.Status == services.HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   "alert repository not available",
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// GetRepositoryHealth returns detailed alert repository health information
func (h *HealthHandler) GetRepositoryHealth(c *gin.Context) {
	healthCheck := h.checker.CheckRepository(c.Request.Context())

	statusCode := http.StatusOK
	if healthCheck.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}
