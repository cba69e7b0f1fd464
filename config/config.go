package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type ClickHouse struct {
	Host       string
	NativePort int
	Database   string
	Username   string
	Password   string
}

func (c ClickHouse) Configured() bool {
	return c.Host != "" && c.NativePort != 0 && c.Database != ""
}

// Sinks describes which storage collaborators are available. It is built
// from explicit settings only.
type Sinks struct {
	DocStore   bool `json:"docStore"`
	EventStore bool `json:"eventStore"`
	MockAPI    bool `json:"mockApi"`
	LocalCache bool `json:"localCache"`
}

type Config struct {
	Port     string
	GinMode  string
	FEOrigin string

	DatabaseURL   string
	ClickHouse    ClickHouse
	MockAPIURL    string
	LocalCacheDir string

	JWTSecret             []byte
	DashboardPasswordHash string
	DefaultAPIKey         string
	DashboardTokenTTL     time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	// Client side timers used by the simulator and the tracker.
	FlushInterval time.Duration
	PollInterval  time.Duration
}

func (c *Config) Sinks() Sinks {
	return Sinks{
		DocStore:   c.DatabaseURL != "",
		EventStore: c.ClickHouse.Configured(),
		MockAPI:    c.MockAPIURL != "",
		LocalCache: c.LocalCacheDir != "",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads the configuration from the environment. Call godotenv.Load
// beforehand to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		GinMode:               os.Getenv("GIN_MODE"),
		FEOrigin:              getEnvOrDefault("FE_ORIGIN", "http://localhost:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MockAPIURL:            os.Getenv("MOCKAPI_BASE_URL"),
		LocalCacheDir:         os.Getenv("LOCAL_CACHE_DIR"),
		JWTSecret:             []byte(os.Getenv("JWT_SECRET_KEY")),
		DashboardPasswordHash: os.Getenv("DASHBOARD_PASSWORD_HASH"),
		DefaultAPIKey:         os.Getenv("AUTH_DEFAULT"),
		ClickHouse: ClickHouse{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			Database: os.Getenv("CLICKHOUSE_DB_NAME"),
			Username: os.Getenv("CLICKHOUSE_USERNAME"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
	}

	if portStr := os.Getenv("CLICKHOUSE_NATIVE_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
		}
		cfg.ClickHouse.NativePort = port
	}

	var err error
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnvOrDefault("RATE_LIMIT_RPS", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnvOrDefault("RATE_LIMIT_BURST", "20")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	if cfg.DashboardTokenTTL, err = time.ParseDuration(getEnvOrDefault("DASHBOARD_TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TOKEN_TTL: %w", err)
	}
	if cfg.FlushInterval, err = time.ParseDuration(getEnvOrDefault("TRACKER_FLUSH_INTERVAL", "30s")); err != nil {
		return nil, fmt.Errorf("invalid TRACKER_FLUSH_INTERVAL: %w", err)
	}
	if cfg.PollInterval, err = time.ParseDuration(getEnvOrDefault("TRACKER_POLL_INTERVAL", "5s")); err != nil {
		return nil, fmt.Errorf("invalid TRACKER_POLL_INTERVAL: %w", err)
	}

	return cfg, nil
}
