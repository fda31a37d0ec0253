package watchdog

import (
	"context"
	"fmt"
	"time"
)

// ServiceRedis is the service name reported by the cache store monitor.
const ServiceRedis = "redis"

// cacheProbeKey is the sentinel key written and read back on every probe.
const cacheProbeKey = "watchdog:probe"

// CacheStore is the slice of the cache client the monitor exercises.
type CacheStore interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// CacheMonitor probes the Redis cache with a connectivity check followed by a
// write/read/verify round trip of a sentinel key.
type CacheMonitor struct {
	streakState
	store   CacheStore
	timeout time.Duration
}

// NewCacheMonitor creates a monitor for the cache store.
func NewCacheMonitor(store CacheStore, cfg Config) *CacheMonitor {
	return &CacheMonitor{
		streakState: newStreakState(ServiceRedis, cfg.AlertThreshold),
		store:       store,
		timeout:     cfg.Timeout,
	}
}

// CheckHealth runs one probe against the cache store.
func (m *CacheMonitor) CheckHealth(ctx context.Context) ServiceHealth {
	start := time.Now()

	if m.store == nil {
		return m.observe(snapshot(m.name, StatusUnknown, start,
			fmt.Errorf("cache store not configured"), nil))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("ping: %w", err), nil))
	}

	// Round trip a sentinel value; a mismatch on read-back counts the same
	// as a connection failure.
	want := fmt.Sprintf("%d", start.UnixNano())
	if err := m.store.Set(ctx, cacheProbeKey, want, time.Minute); err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("set sentinel: %w", err), nil))
	}

	got, err := m.store.Get(ctx, cacheProbeKey)
	if err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("get sentinel: %w", err), nil))
	}
	if got != want {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("sentinel mismatch: wrote %q, read %q", want, got), nil))
	}

	return m.observe(snapshot(m.name, StatusHealthy, start, nil, nil))
}
