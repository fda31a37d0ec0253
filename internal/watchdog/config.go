package watchdog

import (
	"os"
	"strconv"
	"time"
)

// Config holds watchdog configuration. It is built once at startup and
// immutable afterwards.
type Config struct {
	// CheckInterval is the time between cycles while any dependency is
	// unstable. Default: 30s.
	CheckInterval time.Duration `json:"check_interval"`

	// StableInterval is the time between cycles while every dependency is
	// healthy. Clamped to at least CheckInterval. Default: 5m.
	StableInterval time.Duration `json:"stable_mode_interval"`

	// Timeout bounds each individual probe. Default: 10s.
	Timeout time.Duration `json:"timeout"`

	// StartupDelay is the grace period before the first cycle, so dependent
	// services can finish their own startup before being probed. Default: 10s.
	StartupDelay time.Duration `json:"startup_delay"`

	// MaxRetries is the retry budget for probes that retry internally
	// (the LLM listing call). Default: 3.
	MaxRetries int `json:"max_retries"`

	// AlertThreshold is the number of consecutive failures required before
	// the first alert of an outage episode. Default: 3.
	AlertThreshold int `json:"alert_threshold"`

	// LoggingEnabled toggles per-cycle logging. Default: true.
	LoggingEnabled bool `json:"enable_logging"`

	// LogLevel is the zerolog level name for the watchdog logger.
	// Default: "info".
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  30 * time.Second,
		StableInterval: 5 * time.Minute,
		Timeout:        10 * time.Second,
		StartupDelay:   10 * time.Second,
		MaxRetries:     3,
		AlertThreshold: 3,
		LoggingEnabled: true,
		LogLevel:       "info",
	}
}

// ConfigFromEnv creates a Config from environment variables. Each field is
// parsed independently; a malformed value falls back to that field's default
// without affecting the others and never aborts startup.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		CheckInterval:  envDuration("WATCHDOG_CHECK_INTERVAL", def.CheckInterval),
		StableInterval: envDuration("WATCHDOG_STABLE_INTERVAL", def.StableInterval),
		Timeout:        envDuration("WATCHDOG_TIMEOUT", def.Timeout),
		StartupDelay:   envDuration("WATCHDOG_STARTUP_DELAY", def.StartupDelay),
		MaxRetries:     envInt("WATCHDOG_MAX_RETRIES", def.MaxRetries),
		AlertThreshold: envInt("WATCHDOG_ALERT_THRESHOLD", def.AlertThreshold),
		LoggingEnabled: envBool("WATCHDOG_ENABLE_LOGGING", def.LoggingEnabled),
		LogLevel:       envString("WATCHDOG_LOG_LEVEL", def.LogLevel),
	}
	return cfg.normalized()
}

// normalized enforces cross-field invariants without rejecting the config.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = def.StartupDelay
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.AlertThreshold < 1 {
		c.AlertThreshold = def.AlertThreshold
	}
	// Stable mode must never poll more often than unstable mode.
	if c.StableInterval < c.CheckInterval {
		c.StableInterval = c.CheckInterval
	}
	return c
}

func envString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Plain numbers are read as seconds.
		if secs, convErr := strconv.ParseFloat(v, 64); convErr == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return defaultValue
	}
	return d
}

func envInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func envBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
