package handlers

import (
	"github.com/gin-gonic/gin"
)

// Router handles HTTP routing setup
type Router struct {
	alertHandler  *AlertHandler
	healthHandler *HealthHandler
	statusHandler *StatusHandler
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(alertHandler *AlertHandler, healthHandler *HealthHandler, statusHandler *StatusHandler) *Router {
	return &Router{
		alertHandler:  alertHandler,
		healthHandler: healthHandler,
		statusHandler: statusHandler,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.POST("/alerts", r.alertHandler.CreateAlert)
		api.GET("/alerts/:owner", r.alertHandler.ListAlerts)
		api.DELETE("/alerts/:id", r.alertHandler.DeleteAlert)
	}

	engine.GET("/status", r.statusHandler.GetStatus)
	engine.GET("/metrics", r.statusHandler.GetMetrics)
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
		health.GET("/db", r.healthHandler.GetRepositoryHealth)
	}
}
