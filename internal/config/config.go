// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults preserved from the upstream system.
const (
	// DefaultCacheTTL matches CACHE_TTL_MS.
	DefaultCacheTTL = 60 * time.Second

	// DefaultGracePeriod matches GRACE_PERIOD_MS: the window during which
	// orphan apps and unknown organization users are allowed with a warning.
	DefaultGracePeriod = 30 * 24 * time.Hour

	// LegacySubscriptionCutoff is the fixed deadline (epoch ms) of the
	// legacy compatibility window: orphan apps whose freeUntil falls on or
	// before this instant get the X-Ninja-Subscription-Missing header.
	// 2025-07-01T00:00:00Z.
	LegacySubscriptionCutoff int64 = 1751328000000
)

// Config holds all configuration for the billing backend.
type Config struct {
	DataDir     string
	BindAddress string
	Port        int

	// PrivateBackend disables billing preprocessing, postprocessing, and
	// writeback entirely (self-hosted deployments).
	PrivateBackend bool

	CacheTTL    time.Duration
	GracePeriod time.Duration

	// LegacyCutoff is the legacy compatibility deadline in epoch ms.
	LegacyCutoff int64

	// StripeSecretKey enables PAYG meter events. Empty means metering is
	// skipped.
	StripeSecretKey string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. A .env file is loaded
// if present but not required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := envOrDefaultInt("NINJA_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cacheTTLMS, err := envOrDefaultInt64("NINJA_CACHE_TTL_MS", DefaultCacheTTL.Milliseconds())
	if err != nil {
		return nil, err
	}
	gracePeriodMS, err := envOrDefaultInt64("NINJA_GRACE_PERIOD_MS", DefaultGracePeriod.Milliseconds())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         envOrDefault("NINJA_DATA_DIR", "/data"),
		BindAddress:     envOrDefault("NINJA_BIND_ADDRESS", "0.0.0.0"),
		Port:            port,
		PrivateBackend:  envBool("NINJA_PRIVATE_BACKEND"),
		CacheTTL:        time.Duration(cacheTTLMS) * time.Millisecond,
		GracePeriod:     time.Duration(gracePeriodMS) * time.Millisecond,
		LegacyCutoff:    LegacySubscriptionCutoff,
		StripeSecretKey: strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		LogLevel:        envOrDefault("NINJA_LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("NINJA_LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive, got %s", c.GracePeriod)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func envOrDefaultInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
