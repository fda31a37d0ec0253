package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServiceVectorDB is the service name reported by the vector database monitor.
const ServiceVectorDB = "vectordb"

// vectorProbeCollection holds the throwaway documents written by probes.
const vectorProbeCollection = "watchdog_probe"

// VectorCollection is one named collection in the vector database.
type VectorCollection interface {
	Add(ctx context.Context, ids, documents []string, metadatas []map[string]interface{}) error
	Query(ctx context.Context, text string, nResults int) ([]string, error)
	Delete(ctx context.Context, ids []string) error
}

// VectorStore is the slice of the vector database client the monitor exercises.
type VectorStore interface {
	GetOrCreateCollection(ctx context.Context, name string) (VectorCollection, error)
	ListCollections(ctx context.Context) ([]string, error)
}

// VectorMonitor probes the vector database with a full write/query/delete
// round trip against a scratch collection.
type VectorMonitor struct {
	streakState
	store   VectorStore
	timeout time.Duration
}

// NewVectorMonitor creates a monitor for the vector database.
func NewVectorMonitor(store VectorStore, cfg Config) *VectorMonitor {
	return &VectorMonitor{
		streakState: newStreakState(ServiceVectorDB, cfg.AlertThreshold),
		store:       store,
		timeout:     cfg.Timeout,
	}
}

// CheckHealth runs one probe against the vector database. The scratch
// document is deleted again on the success path.
func (m *VectorMonitor) CheckHealth(ctx context.Context) ServiceHealth {
	start := time.Now()

	if m.store == nil {
		return m.observe(snapshot(m.name, StatusUnknown, start,
			fmt.Errorf("vector store not configured"), nil))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	coll, err := m.store.GetOrCreateCollection(ctx, vectorProbeCollection)
	if err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("get or create collection: %w", err), nil))
	}

	docID := "probe-" + uuid.New().String()
	err = coll.Add(ctx,
		[]string{docID},
		[]string{"watchdog connectivity probe"},
		[]map[string]interface{}{{"source": "watchdog"}},
	)
	if err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("add probe document: %w", err), nil))
	}

	matches, err := coll.Query(ctx, "watchdog connectivity probe", 1)
	if err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("query probe document: %w", err), nil))
	}
	if len(matches) == 0 {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("query returned no matches for probe document"), nil))
	}

	if err := coll.Delete(ctx, []string{docID}); err != nil {
		return m.observe(snapshot(m.name, StatusUnhealthy, start,
			fmt.Errorf("delete probe document: %w", err), nil))
	}

	meta := map[string]interface{}{"collection": vectorProbeCollection}
	return m.observe(snapshot(m.name, StatusHealthy, start, nil, meta))
}
