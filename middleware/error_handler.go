package middleware

import (
	"strconv"

	"github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error envelope returned for every failed request.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into the standard
// error envelope. AppErrors keep their status and type; anything else is a
// sanitized 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		log := logger.GetLogger()

		if appError, ok := err.(*errors.AppError); ok {
			log.Warnw("Request failed",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"client_ip", c.ClientIP(),
				"request_id", c.GetString(RequestIDKey),
				"error_type", string(appError.Type),
				"error", appError.Error())

			c.JSON(appError.HTTPStatus, ErrorResponse{
				Type:    string(appError.Type),
				Message: appError.Message,
				Details: appError.Detail,
				Code:    strconv.Itoa(appError.HTTPStatus),
			})
			return
		}

		log.Errorw("Unhandled error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", c.GetString(RequestIDKey),
			"error", err)

		appErr := errors.InternalServerError("An unexpected error occurred")
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			Type:    string(appErr.Type),
			Message: appErr.Message,
			Code:    strconv.Itoa(appErr.HTTPStatus),
		})
	}
}
