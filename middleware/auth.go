package middleware

import (
	"crypto/subtle"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey is the gin context key holding the authenticated user ID.
	UserIDKey = "user_id"
	// ReviewerKey is set to true once reviewer access has been verified.
	ReviewerKey = "is_reviewer"
)

// RequireUser extracts the submitter identity from the X-User-ID header set
// by the upstream gateway. Requests without one are rejected.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			_ = c.Error(apperrors.Unauthorized("missing_user", "User identity is required"))
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// RequireReviewer guards review endpoints with a shared API key. An empty
// configured key (development only) disables the check.
func RequireReviewer(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Set(ReviewerKey, true)
			c.Next()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			_ = c.Error(apperrors.Forbidden("Reviewer access required", ""))
			c.Abort()
			return
		}
		c.Set(ReviewerKey, true)
		c.Next()
	}
}
