package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupErrorRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), ErrorHandler())
	r.GET("/test", handler)
	return r
}

func TestErrorHandler_AppError(t *testing.T) {
	r := setupErrorRouter(func(c *gin.Context) {
		_ = c.Error(apperrors.Duplicate("receipt-42"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(apperrors.DuplicateError), resp.Type)
	assert.Contains(t, resp.Details, "receipt-42")
}

func TestErrorHandler_UnknownErrorSanitized(t *testing.T) {
	r := setupErrorRouter(func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// Raw error text must not leak.
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestErrorHandler_NoErrorPassesThrough(t *testing.T) {
	r := setupErrorRouter(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
