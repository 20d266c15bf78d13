// Package config provides configuration management for the admission control service.
// It loads configuration from environment variables with sensible defaults and
// validates it so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Append logs to this file instead of stdout
//   - METRICS_ENABLED: Serve Prometheus metrics at /metrics (default: true)
//   - TLS_CERT_FILE / TLS_KEY_FILE: Serve HTTPS when both are set
//
// Redis Configuration (optional, the in-memory store is used when both are empty):
//   - REDIS_URL: Redis connection URL, e.g. redis://:pass@host:6379/0 (takes precedence)
//   - REDIS_ADDRESS: Redis server address host:port
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_STORE_TIMEOUT: Per-call Redis timeout before falling back (default: 100ms)
//   - RATE_LIMIT_SWEEP_INTERVAL: In-memory expired bucket sweep interval (default: 5m)
//   - RATE_LIMIT_BREAKER_FAILURES: Consecutive Redis failures before the breaker opens (default: 5)
//   - RATE_LIMIT_BREAKER_COOLDOWN: Time the breaker stays open (default: 30s)
//   - RATE_LIMIT_TRUST_PROXY: Derive client identity from X-Forwarded-For/X-Real-IP (default: true)
//   - RATE_LIMIT_<NAME>_MAX / RATE_LIMIT_<NAME>_WINDOW: Override the feedback, general
//     or strict preset. Durations also accept whole days and weeks ("1d", "2w")
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/utils"
)

// PresetNames lists the limiter presets that can be overridden from the environment.
var PresetNames = []string{"feedback", "general", "strict"}

// PresetOverride holds the raw override values for one preset. Empty means keep the default.
type PresetOverride struct {
	Max    string
	Window string
}

// Config holds all configuration values for the service.
type Config struct {
	// Application settings
	Port           string
	LogLevel       string
	LogFile        string
	MetricsEnabled bool
	TLSCertFile    string
	TLSKeyFile     string

	// Redis configuration for the shared counter store
	RedisURL      string
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Rate limiting configuration
	RateLimitEnabled         bool
	RateLimitStoreTimeout    string
	RateLimitSweepInterval   string
	RateLimitBreakerFailures string
	RateLimitBreakerCooldown string
	RateLimitTrustProxy      bool

	Presets map[string]PresetOverride
}

// Load creates a new Config instance with values loaded from environment variables.
// It does not validate; call Validate on the result.
func Load() *Config {
	presets := make(map[string]PresetOverride, len(PresetNames))
	for _, name := range PresetNames {
		prefix := "RATE_LIMIT_" + strings.ToUpper(name)
		presets[name] = PresetOverride{
			Max:    getEnv(prefix+"_MAX", ""),
			Window: getEnv(prefix+"_WINDOW", ""),
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
		TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		RateLimitEnabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitStoreTimeout:    getEnv("RATE_LIMIT_STORE_TIMEOUT", "100ms"),
		RateLimitSweepInterval:   getEnv("RATE_LIMIT_SWEEP_INTERVAL", "5m"),
		RateLimitBreakerFailures: getEnv("RATE_LIMIT_BREAKER_FAILURES", "5"),
		RateLimitBreakerCooldown: getEnv("RATE_LIMIT_BREAKER_COOLDOWN", "30s"),
		RateLimitTrustProxy:      getBoolEnv("RATE_LIMIT_TRUST_PROXY", true),

		Presets: presets,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts anything strconv.ParseBool does and falls back to defaultValue otherwise.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks formats and ranges of every value. The typed accessors
// below assume Validate has returned nil.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return apperrors.ConfigError("PORT must be a valid port number between 1 and 65535")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return apperrors.ConfigError("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.HasRedis() {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return apperrors.ConfigError("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return apperrors.ConfigError("REDIS_POOL_SIZE must be a positive number")
		}
	}

	for _, d := range []struct{ name, value string }{
		{"RATE_LIMIT_STORE_TIMEOUT", c.RateLimitStoreTimeout},
		{"RATE_LIMIT_SWEEP_INTERVAL", c.RateLimitSweepInterval},
		{"RATE_LIMIT_BREAKER_COOLDOWN", c.RateLimitBreakerCooldown},
	} {
		if parsed, err := utils.ParseDuration(d.value); err != nil || parsed <= 0 {
			return apperrors.ConfigError(fmt.Sprintf("%s must be a positive duration (e.g. '100ms', '5m')", d.name))
		}
	}

	if failures, err := strconv.Atoi(c.RateLimitBreakerFailures); err != nil || failures < 1 {
		return apperrors.ConfigError("RATE_LIMIT_BREAKER_FAILURES must be a positive number")
	}

	for name, override := range c.Presets {
		prefix := "RATE_LIMIT_" + strings.ToUpper(name)
		if override.Max != "" {
			if max, err := strconv.Atoi(override.Max); err != nil || max < 1 {
				return apperrors.ConfigError(prefix + "_MAX must be a positive number")
			}
		}
		if override.Window != "" {
			if window, err := utils.ParseDuration(override.Window); err != nil || window < time.Millisecond {
				return apperrors.ConfigError(prefix + "_WINDOW must be a duration of at least 1ms")
			}
		}
	}

	return nil
}

// HasRedis reports whether a Redis backend was configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != "" || c.RedisAddress != ""
}

// RedisDBNumber returns REDIS_DB as an int.
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPool returns REDIS_POOL_SIZE as an int.
func (c *Config) RedisPool() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

func (c *Config) StoreTimeout() time.Duration {
	return parseDuration(c.RateLimitStoreTimeout, 100*time.Millisecond)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.RateLimitSweepInterval, 5*time.Minute)
}

func (c *Config) BreakerCooldown() time.Duration {
	return parseDuration(c.RateLimitBreakerCooldown, 30*time.Second)
}

func (c *Config) BreakerFailures() uint32 {
	n, err := strconv.Atoi(c.RateLimitBreakerFailures)
	if err != nil || n < 1 {
		return 5
	}
	return uint32(n)
}

// PresetLimit returns the overridden max and window for a preset. Zero values
// mean the preset default applies.
func (c *Config) PresetLimit(name string) (int, time.Duration) {
	override, ok := c.Presets[name]
	if !ok {
		return 0, 0
	}
	max, _ := strconv.Atoi(override.Max)
	return max, parseDuration(override.Window, 0)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := utils.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
