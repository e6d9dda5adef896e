package handlers

import (
	"net/http"
	"time"

	"price-alert-engine/internal/services"
	"price-alert-engine/pkg/cache"
	"price-alert-engine/pkg/metrics"
	"price-alert-engine/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// StatusHandler exposes the engine's runtime state: the scheduler
// phase, the last cycle report and the cache and rate limiter counters.
type StatusHandler struct {
	scheduler *services.Scheduler
	cache     *cache.Cache
	limiter   *ratelimiter.RateLimiter
	metrics   *metrics.Collector
}

// NewStatusHandler creates a new StatusHandler instance
func NewStatusHandler(scheduler *services.Scheduler, c *cache.Cache, limiter *ratelimiter.RateLimiter, collector *metrics.Collector) *StatusHandler {
	return &StatusHandler{
		scheduler: scheduler,
		cache:     c,
		limiter:   limiter,
		metrics:   collector,
	}
}

// GetStatus handles GET /status requests
func (h *StatusHandler) GetStatus(c *gin.Context) {
	limiterStats := make(map[string]ratelimiter.Stats)
	for _, key := range h.limiter.Keys() {
		limiterStats[key] = h.limiter.Stats(key)
	}

	c.JSON(http.StatusOK, gin.H{
		"state":        h.scheduler.State(),
		"last_cycle":   h.scheduler.LastReport(),
		"cache":        h.cache.Stats(),
		"rate_limiter": limiterStats,
		"uptime":       h.metrics.GetUptime().String(),
		"timestamp":    time.Now().UTC(),
	})
}

// GetMetrics handles GET /metrics requests
func (h *StatusHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":         h.metrics.GetMetrics(),
		"uptime":          h.metrics.GetUptime().String(),
		"cache_hit_ratio": h.metrics.GetCacheHitRatio(),
		"trigger_rate":    h.metrics.GetTriggerRate(),
		"timestamp":       time.Now().UTC(),
	})
}
