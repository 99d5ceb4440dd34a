package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything cmd/api needs to wire the service. All values
// come from ACCESSGATE_* environment variables with local-dev defaults.
type Config struct {
	Addr string

	// Postgres DSN. Empty means in-memory stores (local development).
	PGDSN string

	// Redis cache for directory lookups. Empty disables the cache.
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	CachePrefix   string

	// Base URL of the external permission service. Empty means the
	// in-process fake.
	IAMBaseURL string
	IAMTimeout time.Duration

	// Backoff schedule for retried permission-service calls.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMultiplier  float64

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment, honoring a .env file in
// the working directory when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          getString("ACCESSGATE_ADDR", ":8080"),
		PGDSN:         os.Getenv("ACCESSGATE_PG_DSN"),
		RedisAddr:     os.Getenv("ACCESSGATE_REDIS_ADDR"),
		RedisPassword: os.Getenv("ACCESSGATE_REDIS_PASSWORD"),
		CachePrefix:   getString("ACCESSGATE_CACHE_PREFIX", "accessgate:"),
		IAMBaseURL:    os.Getenv("ACCESSGATE_IAM_URL"),
	}

	var err error
	if cfg.CacheTTL, err = getDuration("ACCESSGATE_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IAMTimeout, err = getDuration("ACCESSGATE_IAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getInt("ACCESSGATE_RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = getDuration("ACCESSGATE_RETRY_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMultiplier, err = getFloat("ACCESSGATE_RETRY_MULTIPLIER", 2); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("ACCESSGATE_RATE_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.RatePerSec, err = getInt("ACCESSGATE_RATE_PER_SEC", 10); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
