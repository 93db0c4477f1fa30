package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	JWTSecret        string
	DefaultLocale    string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string

	LedgerBaseURL string
	LedgerTimeout time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	Jobs JobsConfig

	SnapshotDir         string
	SnapshotDatabaseURL string
	PricingFile         string
}

// JobsConfig holds the generation-job policy knobs.
type JobsConfig struct {
	ExecutionTimeout time.Duration
	ClaimTTL         time.Duration
	Retention        time.Duration
	StuckAfter       time.Duration
	SweepSchedule    string
}

var defaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:7000",
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "3001"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "zh-TW"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:   getEnvList("FRONTEND_ORIGINS", defaultAllowedOrigins),
		LedgerBaseURL:    strings.TrimRight(getEnv("DB_SERVER_URL", "http://localhost:3002"), "/"),
		LedgerTimeout:    time.Second * time.Duration(getEnvInt("LEDGER_TIMEOUT_SECONDS", 15)),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		Jobs: JobsConfig{
			ExecutionTimeout: getEnvDuration("JOB_EXECUTION_TIMEOUT", 10*time.Minute),
			ClaimTTL:         getEnvDuration("JOB_CLAIM_TTL", 2*time.Minute),
			Retention:        getEnvDuration("JOB_RETENTION", 24*time.Hour),
			StuckAfter:       getEnvDuration("JOB_STUCK_AFTER", 30*time.Minute),
			SweepSchedule:    getEnv("JOB_SWEEP_SCHEDULE", "@every 1h"),
		},
		SnapshotDir:         getEnvAllowEmpty("JOB_SNAPSHOT_DIR", "./data"),
		SnapshotDatabaseURL: os.Getenv("JOB_SNAPSHOT_DATABASE_URL"),
		PricingFile:         os.Getenv("PRICING_FILE"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AppEnv == "production" && strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when APP_ENV=production")
	}
	if cfg.Jobs.StuckAfter <= cfg.Jobs.ExecutionTimeout {
		return nil, fmt.Errorf("JOB_STUCK_AFTER (%s) must exceed JOB_EXECUTION_TIMEOUT (%s)", cfg.Jobs.StuckAfter, cfg.Jobs.ExecutionTimeout)
	}
	if cfg.Jobs.ClaimTTL <= 0 || cfg.Jobs.Retention <= 0 {
		return nil, fmt.Errorf("JOB_CLAIM_TTL and JOB_RETENTION must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty treats an explicitly empty variable as a deliberate "off".
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable. Trailing slashes are dropped
// so origins compare the way browsers send them.
func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
