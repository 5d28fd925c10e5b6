// Package router defines the HTTP route layout and wires handlers to it.
package router

import (
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/bookbonus/bonus-backend/handlers"
	"github.com/bookbonus/bonus-backend/middleware"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config         *config.Config
	ReceiptHandler *handlers.ReceiptHandler
	ReviewHandler  *handlers.ReviewHandler
	BonusHandler   *handlers.BonusHandler
	HealthHandler  *handlers.HealthHandler
	RateLimiter    services.RateLimiterInterface
	Logger         *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and metrics routes (no auth)
	r.GET("/health", deps.HealthHandler.Readiness)
	r.GET("/health/liveness", deps.HealthHandler.Liveness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		// Submitter routes. Identity comes from the upstream gateway; rate
		// limiting applies to submissions only.
		submissionLimit := middleware.SubmissionRateLimiter(
			deps.RateLimiter,
			deps.Config.RateLimit.SubmissionsPerWindow,
			time.Duration(deps.Config.RateLimit.WindowSeconds)*time.Second,
		)
		userRoutes := v1.Group("", middleware.RequireUser())
		{
			userRoutes.POST("/receipts", submissionLimit, deps.ReceiptHandler.Submit)
			userRoutes.GET("/receipts/:id", deps.ReceiptHandler.Get)
		}

		// Reviewer routes, guarded by the reviewer API key.
		reviewRoutes := v1.Group("/review", middleware.RequireReviewer(deps.Config.Server.ReviewerAPIKey))
		{
			reviewRoutes.GET("/receipts", deps.ReceiptHandler.ListPending)
			reviewRoutes.GET("/receipts/:id", deps.ReceiptHandler.Get)
			reviewRoutes.POST("/receipts/:id", deps.ReviewHandler.Review)
			reviewRoutes.POST("/receipts/:id/reprocess", deps.ReceiptHandler.Reprocess)
		}

		// Redemption is public; the access token is the credential.
		v1.GET("/bonus/:token", deps.BonusHandler.Redeem)
	}

	return r
}
