package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware that applies the token bucket per
// client IP. Used to shield the admin surface; outbound fetch limiting
// goes through Acquire instead.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "admin:" + c.ClientIP()

		if !rl.TryAcquire(key) {
			stats := rl.Stats(key)

			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Rate limit exceeded.",
				},
				"acquired":  stats.Acquired,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Abort()
			return
		}

		stats := rl.Stats(key)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(stats.Tokens)))

		c.Next()
	}
}
