// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the Cadence backend.
type Config struct {
	ServerPort string

	// Backend-as-a-service the gateway talks to.
	BackendURL    string
	BackendAPIKey string

	JWTSecret string

	ShareDBPath string

	// Gateway tuning.
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RequestsPerSecond  int

	DefaultVolume float64

	// QueueSkipStale controls what happens when the head of the manual
	// play queue no longer resolves to a known song: false reproduces the
	// original behavior (consume the entry and do nothing), true keeps
	// consuming until a playable entry is found.
	QueueSkipStale bool

	FrontendURL string
}

// Load reads configuration from the environment, loading a .env file first
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "3001"),
		BackendURL:         getEnv("BACKEND_URL", "http://localhost:8090"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", "default-secret-key-change-in-production"),
		ShareDBPath:        getEnv("SHARE_DB_PATH", "data/shares.db"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		MaxRetries:         getEnvInt("GATEWAY_MAX_RETRIES", 3),
		RetryBaseDelay:     getEnvDuration("GATEWAY_RETRY_BASE_DELAY", 200*time.Millisecond),
		RequestsPerSecond:  getEnvInt("GATEWAY_REQUESTS_PER_SECOND", 20),
		DefaultVolume:      getEnvFloat("DEFAULT_VOLUME", 0.7),
		QueueSkipStale:     getEnv("QUEUE_SKIP_STALE", "false") == "true",
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.DefaultVolume < 0 || cfg.DefaultVolume > 1 {
		return nil, fmt.Errorf("DEFAULT_VOLUME must be in [0,1], got %v", cfg.DefaultVolume)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("GATEWAY_MAX_RETRIES must be >= 0, got %d", cfg.MaxRetries)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
