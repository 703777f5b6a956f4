package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	MigrationsAuto     bool

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	TagCacheTTL         time.Duration
	TagDefaultLimit     int

	AnalysisBasicLimit      int
	AnalysisAdditionalLimit int
	AnalysisDedupWindow     time.Duration
	AnalysisStatsTTL        time.Duration
	MaxUploadBytes          int64

	ClassifierURL         string
	ClassifierTimeout     time.Duration
	ClassifierMaxAttempts int
	BreakerFailures       int
	BreakerFailureRatio   float64
	BreakerCooldown       time.Duration

	RateLimitAPI              string
	RateLimitAnalysisPerMin   int
	IdempotencyTTL            time.Duration
	WorkerConcurrency         int
	WorkerLockTTL             time.Duration
	OTLPEndpoint              string
	LogFormat                 string
	LogLevel                  string
	MetricsEnabled            bool
	TracingEnabled            bool
	PromotionLogEachEvaluated bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backend-dapur"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrationsAuto:     parseBool(k.String("MIGRATIONS_AUTO")),

		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogDefaultLimit: parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 20),
		CatalogMaxLimit:     parseInt(k.String("CATALOG_MAX_LIMIT"), 100),
		TagCacheTTL:         parseDuration(k.String("TAG_CACHE_TTL"), "5m"),
		TagDefaultLimit:     parseInt(k.String("TAG_DEFAULT_LIMIT"), 10),

		AnalysisBasicLimit:      parseInt(k.String("ANALYSIS_BASIC_LIMIT"), 5),
		AnalysisAdditionalLimit: parseInt(k.String("ANALYSIS_ADDITIONAL_LIMIT"), 3),
		AnalysisDedupWindow:     parseDuration(k.String("ANALYSIS_DEDUP_WINDOW"), "1h"),
		AnalysisStatsTTL:        parseDuration(k.String("ANALYSIS_STATS_TTL"), "10m"),
		MaxUploadBytes:          int64(parseInt(k.String("MAX_UPLOAD_BYTES"), 10<<20)),

		ClassifierURL:         strings.TrimRight(valueOrDefault(strings.TrimSpace(k.String("CLASSIFIER_URL")), "http://localhost:8001/predict"), "/"),
		ClassifierTimeout:     parseDuration(k.String("CLASSIFIER_TIMEOUT"), "15s"),
		ClassifierMaxAttempts: parseInt(k.String("CLASSIFIER_MAX_ATTEMPTS"), 3),
		BreakerFailures:       parseInt(k.String("CLASSIFIER_BREAKER_FAILURES"), 5),
		BreakerFailureRatio:   parseRatio(k.String("CLASSIFIER_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerCooldown:       parseDuration(k.String("CLASSIFIER_BREAKER_COOLDOWN"), "30s"),

		RateLimitAPI:            valueOrDefault(k.String("RATE_LIMIT_API"), "300-M"),
		RateLimitAnalysisPerMin: parseInt(k.String("RATE_LIMIT_ANALYSIS_PER_MIN"), 10),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		WorkerConcurrency:       parseInt(k.String("WORKER_CONCURRENCY"), 5),
		WorkerLockTTL:           parseDuration(k.String("WORKER_LOCK_TTL"), "2m"),
		OTLPEndpoint:            strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		LogFormat:               valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:                valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:          parseBoolDefault(k.String("METRICS_ENABLED"), true),
		TracingEnabled:          parseBool(k.String("TRACING_ENABLED")),

		PromotionLogEachEvaluated: parseBool(k.String("PROMOTION_DEBUG_LOG")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.CatalogMaxLimit < cfg.CatalogDefaultLimit {
		cfg.CatalogMaxLimit = cfg.CatalogDefaultLimit
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseRatio(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 || f > 1 {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
