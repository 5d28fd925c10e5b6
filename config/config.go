// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bookbonus/bonus-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	minSigningKeyLength = 32
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT"`
	Port           string      `mapstructure:"PORT"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS"`
	Version        string      `mapstructure:"VERSION"`
	// SigningKey is the HMAC key for time-boxed entitlement access tokens.
	SigningKey string `mapstructure:"SIGNING_KEY"`
	// ReviewerAPIKey guards the manual review endpoints.
	ReviewerAPIKey string `mapstructure:"REVIEWER_API_KEY"`
	// FrontendURL is used to build links embedded in delivery emails.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
}

// DatabaseConfig holds PostgreSQL database connection details.
type DatabaseConfig struct {
	Host         string `mapstructure:"HOST"`
	Port         int    `mapstructure:"PORT"`
	User         string `mapstructure:"USER"`
	Password     string `mapstructure:"PASSWORD"`
	Name         string `mapstructure:"NAME"`
	SSLMode      string `mapstructure:"SSL_MODE"`
	MaxOpenConns int    `mapstructure:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"MAX_IDLE_CONNS"`
}

// URL returns a postgres:// connection URL suitable for golang-migrate and
// other URL-based database tools.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
	UseTLS   bool   `mapstructure:"USE_TLS"`
}

// StorageConfig holds blob storage (S3-compatible) configuration.
// When Backend is "local", files are written under LocalBasePath instead;
// local storage is only permitted in development.
type StorageConfig struct {
	Backend         string `mapstructure:"BACKEND"` // "s3" or "local"
	AccountID       string `mapstructure:"ACCOUNT_ID"`
	Bucket          string `mapstructure:"BUCKET"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY"`
	LocalBasePath   string `mapstructure:"LOCAL_BASE_PATH"`
}

// OCRConfig holds configuration for the external OCR provider.
type OCRConfig struct {
	APIUrl         string `mapstructure:"API_URL"`
	APIKey         string `mapstructure:"API_KEY"`
	TimeoutSeconds int    `mapstructure:"TIMEOUT_SECONDS"`
	MaxAttempts    int    `mapstructure:"MAX_ATTEMPTS"`
}

// ExtractionConfig holds configuration for the LLM structured-extraction provider.
type ExtractionConfig struct {
	GeminiAPIKey   string `mapstructure:"GEMINI_API_KEY"`
	Model          string `mapstructure:"MODEL"`
	TimeoutSeconds int    `mapstructure:"TIMEOUT_SECONDS"`
	MaxAttempts    int    `mapstructure:"MAX_ATTEMPTS"`
}

// EmailConfig holds configuration for sending emails via Resend.
type EmailConfig struct {
	FromAddress  string `mapstructure:"FROM_ADDRESS"`
	FromName     string `mapstructure:"FROM_NAME"`
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
}

// RateLimitConfig holds configuration for inbound submission rate limiting.
type RateLimitConfig struct {
	// Backend selects the limiter implementation: "redis" or "local".
	Backend string `mapstructure:"BACKEND"`
	// SubmissionsPerWindow is the max receipt submissions per submitter per window.
	SubmissionsPerWindow int `mapstructure:"SUBMISSIONS_PER_WINDOW"`
	WindowSeconds        int `mapstructure:"WINDOW_SECONDS"`
}

// WorkerPoolConfig holds configuration for the verification worker pool.
type WorkerPoolConfig struct {
	MaxWorkers             int `mapstructure:"MAX_WORKERS"`
	QueueSize              int `mapstructure:"QUEUE_SIZE"`
	ShutdownTimeoutSeconds int `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
	JobTimeoutSeconds      int `mapstructure:"JOB_TIMEOUT_SECONDS"`
}

// VerificationConfig holds thresholds and rule parameters for the
// plausibility scoring and auto-verification policy.
type VerificationConfig struct {
	// ExpectedTitle is the book title a valid receipt must mention.
	ExpectedTitle string `mapstructure:"EXPECTED_TITLE"`
	// AutoVerifyScore is the minimum verification score for automatic
	// transition to VERIFIED when no manual-review flag is set.
	AutoVerifyScore int `mapstructure:"AUTO_VERIFY_SCORE"`
	// MinConfidence below which LOW_CONFIDENCE is reported.
	MinConfidence float64 `mapstructure:"MIN_CONFIDENCE"`
	// StalenessDays is the maximum age of a purchase date.
	StalenessDays int `mapstructure:"STALENESS_DAYS"`
	// Price bands per format, in the receipt's currency units.
	HardcoverMinPrice float64 `mapstructure:"HARDCOVER_MIN_PRICE"`
	HardcoverMaxPrice float64 `mapstructure:"HARDCOVER_MAX_PRICE"`
	EbookMinPrice     float64 `mapstructure:"EBOOK_MIN_PRICE"`
	EbookMaxPrice     float64 `mapstructure:"EBOOK_MAX_PRICE"`
	AudiobookMinPrice float64 `mapstructure:"AUDIOBOOK_MIN_PRICE"`
	AudiobookMaxPrice float64 `mapstructure:"AUDIOBOOK_MAX_PRICE"`
	// EntitlementTTLHours is the lifetime of issued access tokens.
	EntitlementTTLHours int `mapstructure:"ENTITLEMENT_TTL_HOURS"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server       ServerConfig       `mapstructure:"SERVER"`
	Database     DatabaseConfig     `mapstructure:"DATABASE"`
	Redis        RedisConfig        `mapstructure:"REDIS"`
	Storage      StorageConfig      `mapstructure:"STORAGE"`
	OCR          OCRConfig          `mapstructure:"OCR"`
	Extraction   ExtractionConfig   `mapstructure:"EXTRACTION"`
	Email        EmailConfig        `mapstructure:"EMAIL"`
	RateLimit    RateLimitConfig    `mapstructure:"RATE_LIMIT"`
	WorkerPool   WorkerPoolConfig   `mapstructure:"WORKER_POOL"`
	Verification VerificationConfig `mapstructure:"VERIFICATION"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, unmarshals into the Config struct, and validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "bookbonus_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_OPEN_CONNS", 5)
	v.SetDefault("DATABASE.MAX_IDLE_CONNS", 2)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("STORAGE.BACKEND", "s3")
	v.SetDefault("STORAGE.LOCAL_BASE_PATH", "./uploads")
	v.SetDefault("OCR.TIMEOUT_SECONDS", 30)
	v.SetDefault("OCR.MAX_ATTEMPTS", 3)
	v.SetDefault("EXTRACTION.MODEL", "gemini-2.5-pro")
	v.SetDefault("EXTRACTION.TIMEOUT_SECONDS", 30)
	v.SetDefault("EXTRACTION.MAX_ATTEMPTS", 3)
	v.SetDefault("RATE_LIMIT.BACKEND", "redis")
	v.SetDefault("RATE_LIMIT.SUBMISSIONS_PER_WINDOW", 5)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 3600)
	v.SetDefault("WORKER_POOL.MAX_WORKERS", 10)
	v.SetDefault("WORKER_POOL.QUEUE_SIZE", 1000)
	v.SetDefault("WORKER_POOL.SHUTDOWN_TIMEOUT_SECONDS", 30)
	v.SetDefault("WORKER_POOL.JOB_TIMEOUT_SECONDS", 120)
	v.SetDefault("VERIFICATION.EXPECTED_TITLE", "AI-Born")
	v.SetDefault("VERIFICATION.AUTO_VERIFY_SCORE", 70)
	v.SetDefault("VERIFICATION.MIN_CONFIDENCE", 0.5)
	v.SetDefault("VERIFICATION.STALENESS_DAYS", 180)
	v.SetDefault("VERIFICATION.HARDCOVER_MIN_PRICE", 15)
	v.SetDefault("VERIFICATION.HARDCOVER_MAX_PRICE", 60)
	v.SetDefault("VERIFICATION.EBOOK_MIN_PRICE", 5)
	v.SetDefault("VERIFICATION.EBOOK_MAX_PRICE", 30)
	v.SetDefault("VERIFICATION.AUDIOBOOK_MIN_PRICE", 10)
	v.SetDefault("VERIFICATION.AUDIOBOOK_MAX_PRICE", 50)
	v.SetDefault("VERIFICATION.ENTITLEMENT_TTL_HOURS", 24)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.SIGNING_KEY", "SIGNING_KEY"},
		{"SERVER.REVIEWER_API_KEY", "REVIEWER_API_KEY"},
		{"SERVER.FRONTEND_URL", "FRONTEND_URL"},
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"STORAGE.BACKEND", "STORAGE_BACKEND"},
		{"STORAGE.ACCOUNT_ID", "STORAGE_ACCOUNT_ID"},
		{"STORAGE.BUCKET", "STORAGE_BUCKET"},
		{"STORAGE.ACCESS_KEY_ID", "STORAGE_ACCESS_KEY_ID"},
		{"STORAGE.SECRET_ACCESS_KEY", "STORAGE_SECRET_ACCESS_KEY"},
		{"STORAGE.LOCAL_BASE_PATH", "STORAGE_LOCAL_BASE_PATH"},
		{"OCR.API_URL", "OCR_API_URL"},
		{"OCR.API_KEY", "OCR_API_KEY"},
		{"OCR.TIMEOUT_SECONDS", "OCR_TIMEOUT_SECONDS"},
		{"OCR.MAX_ATTEMPTS", "OCR_MAX_ATTEMPTS"},
		{"EXTRACTION.GEMINI_API_KEY", "GEMINI_API_KEY"},
		{"EXTRACTION.MODEL", "EXTRACTION_MODEL"},
		{"EXTRACTION.TIMEOUT_SECONDS", "EXTRACTION_TIMEOUT_SECONDS"},
		{"EXTRACTION.MAX_ATTEMPTS", "EXTRACTION_MAX_ATTEMPTS"},
		{"EMAIL.FROM_ADDRESS", "EMAIL_FROM_ADDRESS"},
		{"EMAIL.FROM_NAME", "EMAIL_FROM_NAME"},
		{"EMAIL.RESEND_API_KEY", "RESEND_API_KEY"},
		{"RATE_LIMIT.BACKEND", "RATE_LIMIT_BACKEND"},
		{"RATE_LIMIT.SUBMISSIONS_PER_WINDOW", "RATE_LIMIT_SUBMISSIONS_PER_WINDOW"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
		{"WORKER_POOL.MAX_WORKERS", "WORKER_POOL_MAX_WORKERS"},
		{"WORKER_POOL.QUEUE_SIZE", "WORKER_POOL_QUEUE_SIZE"},
		{"WORKER_POOL.SHUTDOWN_TIMEOUT_SECONDS", "WORKER_POOL_SHUTDOWN_TIMEOUT_SECONDS"},
		{"WORKER_POOL.JOB_TIMEOUT_SECONDS", "WORKER_POOL_JOB_TIMEOUT_SECONDS"},
		{"VERIFICATION.EXPECTED_TITLE", "VERIFICATION_EXPECTED_TITLE"},
		{"VERIFICATION.AUTO_VERIFY_SCORE", "VERIFICATION_AUTO_VERIFY_SCORE"},
		{"VERIFICATION.MIN_CONFIDENCE", "VERIFICATION_MIN_CONFIDENCE"},
		{"VERIFICATION.STALENESS_DAYS", "VERIFICATION_STALENESS_DAYS"},
		{"VERIFICATION.ENTITLEMENT_TTL_HOURS", "VERIFICATION_ENTITLEMENT_TTL_HOURS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"server_port", cfg.Server.Port,
		"db_host", cfg.Database.Host,
		"storage_backend", cfg.Storage.Backend,
		"rate_limit_backend", cfg.RateLimit.Backend,
	)
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
// Production fails fast on missing provider credentials; development may run
// with stub providers, which is logged loudly at startup.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if len(cfg.Server.SigningKey) < minSigningKeyLength {
		return fmt.Errorf("signing key must be at least %d characters long", minSigningKeyLength)
	}
	if cfg.Server.ReviewerAPIKey == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("reviewer API key is required in production")
		}
		log.Warn("Reviewer API key not set; review endpoints are open in development")
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.Password == "" {
		log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
	}

	if cfg.RateLimit.Backend == "redis" && cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is required when rate limit backend is redis")
	}
	if cfg.RateLimit.SubmissionsPerWindow <= 0 {
		return fmt.Errorf("rate limit submissions per window must be positive")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}

	if err := validateProviders(cfg, log); err != nil {
		return err
	}

	if cfg.Email.FromAddress == "" {
		return fmt.Errorf("email from address is required")
	}
	if cfg.Email.ResendAPIKey == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("resend API key is required in production")
		}
		log.Warn("Resend API key not set; delivery emails will be logged, not sent")
	}

	if cfg.WorkerPool.MaxWorkers <= 0 {
		return fmt.Errorf("worker pool max workers must be positive")
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		return fmt.Errorf("worker pool queue size must be positive")
	}
	if cfg.WorkerPool.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("worker pool shutdown timeout must be positive")
	}
	if cfg.WorkerPool.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("worker pool job timeout must be positive")
	}

	if cfg.Verification.ExpectedTitle == "" {
		return fmt.Errorf("expected book title is required")
	}
	if cfg.Verification.AutoVerifyScore < 0 || cfg.Verification.AutoVerifyScore > 100 {
		return fmt.Errorf("auto-verify score must be between 0 and 100")
	}
	if cfg.Verification.MinConfidence < 0 || cfg.Verification.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1")
	}
	if cfg.Verification.StalenessDays <= 0 {
		return fmt.Errorf("staleness window must be positive")
	}
	if cfg.Verification.EntitlementTTLHours <= 0 {
		return fmt.Errorf("entitlement TTL must be positive")
	}

	return nil
}

// validateProviders enforces the provider configuration policy: unconfigured
// external providers are a hard startup error in production and an explicit,
// logged stub fallback in development.
func validateProviders(cfg *Config, log interface{ Warnf(string, ...interface{}) }) error {
	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.AccountID == "" || cfg.Storage.Bucket == "" ||
			cfg.Storage.AccessKeyID == "" || cfg.Storage.SecretAccessKey == "" {
			return fmt.Errorf("s3 storage backend requires account ID, bucket, and credentials")
		}
	case "local":
		if cfg.IsProduction() {
			return fmt.Errorf("local storage backend is not permitted in production")
		}
		if cfg.Storage.LocalBasePath == "" {
			return fmt.Errorf("local storage backend requires a base path")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.OCR.APIUrl == "" || cfg.OCR.APIKey == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("OCR provider URL and API key are required in production")
		}
		log.Warnf("OCR provider not configured; using development stub")
	} else if _, err := url.ParseRequestURI(cfg.OCR.APIUrl); err != nil {
		return fmt.Errorf("invalid OCR API URL: %w", err)
	}
	if cfg.OCR.MaxAttempts <= 0 || cfg.OCR.TimeoutSeconds <= 0 {
		return fmt.Errorf("OCR attempts and timeout must be positive")
	}

	if cfg.Extraction.GeminiAPIKey == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("gemini API key is required in production")
		}
		log.Warnf("Extraction provider not configured; using development stub")
	}
	if cfg.Extraction.MaxAttempts <= 0 || cfg.Extraction.TimeoutSeconds <= 0 {
		return fmt.Errorf("extraction attempts and timeout must be positive")
	}

	return nil
}

// containsWildcard checks if the list of allowed origins contains the wildcard "*".
func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
