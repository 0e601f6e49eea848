package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/repository"
)

// RateLimit returns a middleware limiting each client IP to maxRequests per
// window. Counters live in the shared store so the limit holds across
// processes behind one address.
func RateLimit(store repository.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		panic("Store cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// Behind a reverse proxy ClientIP honors the forwarded headers gin is
		// configured to trust.
		key := "ratelimit:" + c.ClientIP()

		count, err := store.CountRequest(c.Request.Context(), key, window)
		if err != nil {
			logrus.WithError(err).Error("RateLimit: counter update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
