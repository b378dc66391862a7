package httpserver

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// rateLimitMiddleware throttles by client IP through the shared Redis
// limiter. Without a limiter it is a pass-through; limiter errors fail open
// so a Redis outage cannot take checkout down.
func rateLimitMiddleware(limiter RateLimiter, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Printf("rate limiter error, failing open: %v", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiResponse{Success: false, Error: "too many requests"})
			return
		}
		c.Next()
	}
}

func adminAuthMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apiResponse{Success: false, Error: "admin api disabled"})
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{Success: false, Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
