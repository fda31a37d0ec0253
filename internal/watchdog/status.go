// Package watchdog provides adaptive health monitoring of the external
// dependencies the assistant relies on: the Redis cache, the vector database,
// the embedding model server and the LLM runtime.
package watchdog

import "time"

// HealthStatus represents the health of a monitored service.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// ServiceHealth is an immutable snapshot of a single probe result.
// Exactly one is produced per monitor per cycle, success or failure alike.
type ServiceHealth struct {
	// Service is the stable name of the probed dependency.
	Service string `json:"service"`

	// Status is the outcome of the probe.
	Status HealthStatus `json:"status"`

	// LastCheck is when the probe ran.
	LastCheck time.Time `json:"last_check"`

	// ResponseTimeMS is the wall-clock duration of the probe in milliseconds.
	ResponseTimeMS float64 `json:"response_time_ms"`

	// Error is a human-readable failure description, empty when healthy.
	Error string `json:"error_message,omitempty"`

	// Metadata carries probe-specific diagnostic detail. It is never used
	// for control flow.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Healthy reports whether the snapshot represents a healthy probe.
func (h ServiceHealth) Healthy() bool {
	return h.Status == StatusHealthy
}
