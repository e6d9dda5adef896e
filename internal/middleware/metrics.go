package middleware

import (
	"price-alert-engine/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware creates a middleware that tracks admin API requests
func MetricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		success := c.Writer.Status() < 400
		collector.RecordAdminRequest(success)
	}
}
