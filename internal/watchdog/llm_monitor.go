package watchdog

import (
	"context"
	"fmt"
	"time"
)

// ServiceLLM is the service name reported by the LLM runtime monitor.
const ServiceLLM = "ollama"

// ModelRuntime is the slice of the LLM runtime client the monitor exercises.
type ModelRuntime interface {
	// ListModels returns the names of the models currently available.
	ListModels(ctx context.Context) ([]string, error)

	// Endpoint returns the runtime's base URL, for diagnostics only.
	Endpoint() string
}

// LLMMonitor probes the LLM runtime with a lightweight model-listing call.
type LLMMonitor struct {
	streakState
	runtime ModelRuntime
	timeout time.Duration
}

// NewLLMMonitor creates a monitor for the LLM runtime.
func NewLLMMonitor(runtime ModelRuntime, cfg Config) *LLMMonitor {
	return &LLMMonitor{
		streakState: newStreakState(ServiceLLM, cfg.AlertThreshold),
		runtime:     runtime,
		timeout:     cfg.Timeout,
	}
}

// CheckHealth runs one probe against the LLM runtime.
func (m *LLMMonitor) CheckHealth(ctx context.Context) ServiceHealth {
	start := time.Now()

	if m.runtime == nil {
		return m.observe(snapshot(m.name, StatusUnknown, start,
			fmt.Errorf("llm runtime not configured"), nil))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	models, err := m.runtime.ListModels(ctx)
	if err != nil {
		meta := map[string]interface{}{"endpoint": m.runtime.Endpoint()}
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("list models: %w", err), meta))
	}

	meta := map[string]interface{}{
		"endpoint":         m.runtime.Endpoint(),
		"models_available": len(models),
	}
	return m.observe(snapshot(m.name, StatusHealthy, start, nil, meta))
}
