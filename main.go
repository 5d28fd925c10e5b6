package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/bookbonus/bonus-backend/db"
	"github.com/bookbonus/bonus-backend/handlers"
	"github.com/bookbonus/bonus-backend/internal/extraction"
	"github.com/bookbonus/bonus-backend/internal/fraud"
	"github.com/bookbonus/bonus-backend/internal/ocr"
	"github.com/bookbonus/bonus-backend/internal/pipeline"
	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/internal/store/postgres"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/router"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply pending schema migrations before opening the pool.
	if err := db.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis client, with TLS when configured.
	redisOptions := &redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.UseTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	defer redisClient.Close()

	fileStorage, err := newFileStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	ocrProvider := newOCRProvider(cfg)

	extractor, closeExtractor, err := newExtractionProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize extraction provider: %v", err)
	}
	defer closeExtractor()

	// Stores
	receiptStore := postgres.NewReceiptStore(pool)
	verificationStore := postgres.NewVerificationStore(pool)
	claimStore := postgres.NewClaimStore(pool)

	// Services
	assets := services.DefaultBonusAssets
	emailService := services.NewEmailService(&cfg.Email, cfg.Server.FrontendURL)
	entitlementService := services.NewEntitlementService(
		claimStore,
		fileStorage,
		cfg.Server.SigningKey,
		time.Duration(cfg.Verification.EntitlementTTLHours)*time.Hour,
		assets,
	)
	fulfillmentService := services.NewFulfillmentService(claimStore, entitlementService, emailService, assets)

	verifier := pipeline.NewVerifier(
		receiptStore,
		verificationStore,
		fileStorage,
		ocrProvider,
		extractor,
		fulfillmentService,
		pipeline.Params{
			Fraud:                 fraudParams(&cfg.Verification),
			AutoVerifyScore:       cfg.Verification.AutoVerifyScore,
			OCRMaxAttempts:        cfg.OCR.MaxAttempts,
			ExtractionMaxAttempts: cfg.Extraction.MaxAttempts,
		},
	)

	workerPool := services.NewWorkerPool(cfg.WorkerPool)
	workerPool.Start()

	receiptService := services.NewReceiptService(
		receiptStore, verificationStore, claimStore, fileStorage, verifier, workerPool)
	reviewService := services.NewReviewService(receiptStore, fulfillmentService)

	var rateLimiter services.RateLimiterInterface
	if cfg.RateLimit.Backend == "redis" {
		rateLimiter = services.NewRateLimitService(redisClient)
	} else {
		log.Warn("Using in-process rate limiter; limits are per instance, not fleet-wide")
		rateLimiter = services.NewLocalRateLimiter()
	}

	// Router
	r := router.SetupRouter(router.Dependencies{
		Config:         cfg,
		ReceiptHandler: handlers.NewReceiptHandler(receiptService),
		ReviewHandler:  handlers.NewReviewHandler(reviewService),
		BonusHandler:   handlers.NewBonusHandler(entitlementService),
		HealthHandler:  handlers.NewHealthHandler(pool, redisClient, cfg.Server.Version),
		RateLimiter:    rateLimiter,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.WorkerPool.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Worker pool shutdown failed", "error", err)
	}
	log.Info("Shutdown complete")
}

// newFileStorage selects the blob storage backend. Local storage is for
// development only; config validation rejects it in production.
func newFileStorage(cfg *config.Config) (storage.FileStorage, error) {
	if cfg.Storage.Backend == "local" {
		return storage.NewLocalFileStorage(cfg.Storage.LocalBasePath), nil
	}
	return storage.NewR2FileStorage(
		cfg.Storage.AccountID,
		cfg.Storage.Bucket,
		cfg.Storage.AccessKeyID,
		cfg.Storage.SecretAccessKey,
	)
}

// newOCRProvider returns the configured OCR client, or the development stub
// when no provider credentials are set.
func newOCRProvider(cfg *config.Config) ocr.Provider {
	if cfg.OCR.APIUrl == "" || cfg.OCR.APIKey == "" {
		logger.GetLogger().Warn("OCR provider not configured, using stub")
		return ocr.NewStubProvider()
	}
	return ocr.NewClient(cfg.OCR.APIUrl, cfg.OCR.APIKey,
		time.Duration(cfg.OCR.TimeoutSeconds)*time.Second)
}

// newExtractionProvider returns the Gemini extraction provider, or the
// development stub when no API key is set. The returned func releases the
// provider's resources.
func newExtractionProvider(ctx context.Context, cfg *config.Config) (extraction.Provider, func(), error) {
	if cfg.Extraction.GeminiAPIKey == "" {
		logger.GetLogger().Warn("Extraction provider not configured, using stub")
		return extraction.NewStubProvider(), func() {}, nil
	}
	gemini, err := extraction.NewGemini(ctx,
		cfg.Extraction.GeminiAPIKey, cfg.Extraction.Model, cfg.Verification.ExpectedTitle)
	if err != nil {
		return nil, nil, err
	}
	return gemini, func() { _ = gemini.Close() }, nil
}

// fraudParams maps the verification config onto the scoring rule thresholds.
func fraudParams(cfg *config.VerificationConfig) fraud.Params {
	return fraud.Params{
		MinConfidence: cfg.MinConfidence,
		Staleness:     time.Duration(cfg.StalenessDays) * 24 * time.Hour,
		Bands: map[types.PurchaseFormat]types.PriceBand{
			types.FormatHardcover: {
				Min: decimal.NewFromFloat(cfg.HardcoverMinPrice),
				Max: decimal.NewFromFloat(cfg.HardcoverMaxPrice),
			},
			types.FormatEbook: {
				Min: decimal.NewFromFloat(cfg.EbookMinPrice),
				Max: decimal.NewFromFloat(cfg.EbookMaxPrice),
			},
			types.FormatAudiobook: {
				Min: decimal.NewFromFloat(cfg.AudiobookMinPrice),
				Max: decimal.NewFromFloat(cfg.AudiobookMaxPrice),
			},
		},
	}
}
