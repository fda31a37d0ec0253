package watchdog

import (
	"context"
	"fmt"
	"time"
)

// ServiceEmbeddings is the service name reported by the embedding model monitor.
const ServiceEmbeddings = "embeddings"

// embeddingProbeText is the fixed string encoded on every probe.
const embeddingProbeText = "watchdog probe"

// Embedder is the slice of the embedding model client the monitor exercises.
type Embedder interface {
	// Available reports whether the model handle is loaded and ready.
	Available() bool
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingMonitor probes the embedding model by encoding a short fixed
// string and checking the result has a positive dimensionality.
type EmbeddingMonitor struct {
	streakState
	embedder Embedder
	timeout  time.Duration
}

// NewEmbeddingMonitor creates a monitor for the embedding model.
func NewEmbeddingMonitor(embedder Embedder, cfg Config) *EmbeddingMonitor {
	return &EmbeddingMonitor{
		streakState: newStreakState(ServiceEmbeddings, cfg.AlertThreshold),
		embedder:    embedder,
		timeout:     cfg.Timeout,
	}
}

// CheckHealth runs one probe against the embedding model.
func (m *EmbeddingMonitor) CheckHealth(ctx context.Context) ServiceHealth {
	start := time.Now()

	if m.embedder == nil {
		return m.observe(snapshot(m.name, StatusUnknown, start,
			fmt.Errorf("embedding model not configured"), nil))
	}
	if !m.embedder.Available() {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("embedding model not loaded"), nil))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	vectors, err := m.embedder.Encode(ctx, []string{embeddingProbeText})
	if err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("encode: %w", err), nil))
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("encode returned an empty embedding"), nil))
	}

	meta := map[string]interface{}{"dimensions": len(vectors[0])}
	return m.observe(snapshot(m.name, StatusHealthy, start, nil, meta))
}
