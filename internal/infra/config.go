package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	GeoIPDBPath string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	PricingBaseURL string
	EstimateTTL    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	// Submission protocol timers.
	SubmitCallTimeout time.Duration
	GraceWindow       time.Duration
	RecoveryWindow    time.Duration
	RecoveryCadence   time.Duration
	RecencyWindow     time.Duration

	// Worker tuning.
	WorkerPollInterval time.Duration
	WorkerStageDelay   time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		PricingBaseURL: os.Getenv("PRICING_BASE_URL"),
		EstimateTTL:    time.Second * time.Duration(getEnvInt("ESTIMATE_TTL_SECONDS", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		SubmitCallTimeout: time.Second * time.Duration(getEnvInt("SUBMIT_CALL_TIMEOUT_SECONDS", 30)),
		GraceWindow:       time.Second * time.Duration(getEnvInt("GRACE_WINDOW_SECONDS", 120)),
		RecoveryWindow:    time.Second * time.Duration(getEnvInt("RECOVERY_WINDOW_SECONDS", 120)),
		RecoveryCadence:   time.Second * time.Duration(getEnvInt("RECOVERY_CADENCE_SECONDS", 5)),
		RecencyWindow:     time.Second * time.Duration(getEnvInt("RECENCY_WINDOW_SECONDS", 300)),

		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		WorkerStageDelay:   time.Millisecond * time.Duration(getEnvInt("WORKER_STAGE_DELAY_MS", 500)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
