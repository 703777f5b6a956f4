package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/dapur",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 5, cfg.AnalysisBasicLimit)
	require.Equal(t, 3, cfg.AnalysisAdditionalLimit)
	require.Equal(t, time.Hour, cfg.AnalysisDedupWindow)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	require.Equal(t, "300-M", cfg.RateLimitAPI)
	require.True(t, cfg.MetricsEnabled)
	require.Equal(t, 0.5, cfg.BreakerFailureRatio)
	require.Equal(t, 2*time.Minute, cfg.WorkerLockTTL)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9000"
	env["TAG_CACHE_TTL"] = "90s"
	env["CATALOG_DEFAULT_LIMIT"] = "50"
	env["CATALOG_MAX_LIMIT"] = "10"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.test, https://b.test,"
	env["METRICS_ENABLED"] = "off"
	env["CLASSIFIER_BREAKER_FAILURE_RATIO"] = "1.5"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, 90*time.Second, cfg.TagCacheTTL)
	require.Equal(t, 50, cfg.CatalogMaxLimit)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.MetricsEnabled)
	require.Equal(t, 0.5, cfg.BreakerFailureRatio)
}

func TestLoadRequiresDatabase(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.EqualError(t, err, "DATABASE_URL is required")
}
