package middleware

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/gin-gonic/gin"
)

// SubmissionRateLimiter throttles receipt submissions per submitter. The key
// is the authenticated user when present, otherwise the client IP, so
// unauthenticated probing is throttled too.
func SubmissionRateLimiter(limiter services.RateLimiterInterface, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(UserIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		allowed, retryAfter, err := limiter.CheckLimit(c.Request.Context(), "submission:"+key, limit, window)
		if err != nil {
			// Fail open: a broken limiter backend should not block submissions.
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			_ = c.Error(apperrors.RateLimitExceeded("Too many submissions, slow down", seconds))
			c.Abort()
			return
		}

		c.Next()
	}
}
