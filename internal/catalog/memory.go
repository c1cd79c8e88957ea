package catalog

import (
	"context"
	"sync"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Memory is an in-process Catalog backed by a slice. Intended for tests and
// dry runs.
type Memory struct {
	mu       sync.RWMutex
	datasets []domain.Dataset
}

var _ Catalog = (*Memory)(nil)

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory { return &Memory{} }

// Add indexes dataset records.
func (m *Memory) Add(datasets ...domain.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets = append(m.datasets, datasets...)
}

// FindDatasets returns every indexed dataset matching the query.
func (m *Memory) FindDatasets(_ context.Context, q Query) ([]domain.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Dataset
	for _, ds := range m.datasets {
		if ds.Product != q.Product {
			continue
		}
		if !q.Time.IsZero() && !q.Time.Contains(ds.CenterTime) {
			continue
		}
		if !overlaps(ds, q.Extent) {
			continue
		}
		if !matchesSourceFilter(ds, q.SourceFilter) {
			continue
		}
		out = append(out, ds)
	}
	return out, nil
}

// Close is a no-op for the memory catalog.
func (m *Memory) Close() error { return nil }
