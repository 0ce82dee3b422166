// Package sink delivers forecast records to the output collaborator. The
// engine only depends on the Sink interface; backends cover a local CSV
// file, an in-memory store with optional JSON snapshot, Redis and Postgres.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pricepally/demandcast/internal/api"
)

// Sink receives the forecast record stream of a run. Writes for different
// series may arrive concurrently; implementations must be thread-safe.
type Sink interface {
	WriteForecasts(ctx context.Context, runID string, records []api.ForecastRecord) error
	Close() error
}

// MemorySink accumulates records in memory with an optional JSON snapshot
// on Close. The default backend for local runs and tests.
type MemorySink struct {
	mu       sync.Mutex
	records  []api.ForecastRecord
	snapshot string
}

// NewMemorySink creates an in-memory sink. snapshotPath may be empty.
func NewMemorySink(snapshotPath string) *MemorySink {
	return &MemorySink{snapshot: snapshotPath}
}

func (m *MemorySink) WriteForecasts(ctx context.Context, runID string, records []api.ForecastRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

// Records returns a copy of everything written so far.
func (m *MemorySink) Records() []api.ForecastRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.ForecastRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemorySink) Close() error {
	if m.snapshot == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(m.snapshot); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	return os.WriteFile(m.snapshot, data, 0644)
}
