package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "CLICKHOUSE_HOST", "CLICKHOUSE_NATIVE_PORT", "CLICKHOUSE_DB_NAME",
		"MOCKAPI_BASE_URL", "LOCAL_CACHE_DIR", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"TRACKER_FLUSH_INTERVAL", "TRACKER_POLL_INTERVAL", "DASHBOARD_TOKEN_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, Sinks{}, cfg.Sinks())
}

func TestLoadSinks(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ab")
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9000")
	t.Setenv("CLICKHOUSE_DB_NAME", "ab")
	t.Setenv("MOCKAPI_BASE_URL", "https://example.mockapi.io/api/v1")
	t.Setenv("LOCAL_CACHE_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Sinks{DocStore: true, EventStore: true, MockAPI: true, LocalCache: true}, cfg.Sinks())
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "nine-thousand")
	_, err := Load()
	assert.Error(t, err)
}
