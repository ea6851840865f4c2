// Package vector provides an in-memory brute-force index, the default backend.
package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// Searches run concurrently under a read lock; insertions take the write lock, so a
// search never observes a half-bound dimension or a partially appended entry.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []*Entry
	nextID    int64
}

// NewMemoryIndex creates an empty index. The dimension is bound by the first Add.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make([]*Entry, 0)}
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Add normalizes vec and appends a new entry with the next ID.
func (m *MemoryIndex) Add(ctx context.Context, vec []float32, response string, metadata map[string]string) (int64, error) {
	if len(vec) == 0 {
		return -1, fmt.Errorf("cannot add empty vector")
	}
	normalized := Normalize(vec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension == 0 {
		m.dimension = len(vec)
	} else if len(vec) != m.dimension {
		return -1, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), m.dimension)
	}
	id := m.nextID
	m.entries = append(m.entries, &Entry{
		ID:       id,
		Vector:   normalized,
		Response: response,
		Metadata: copyMetadata(metadata),
	})
	m.nextID++
	return id, nil
}

// Search returns the top-k entries by cosine similarity. An empty index yields no results.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*SimilarityResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dimension)
	}
	q := Normalize(query)
	results := make([]*SimilarityResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = &SimilarityResult{
			EntryID:    e.ID,
			Similarity: InnerProduct(q, e.Vector),
			Entry:      e,
		}
	}
	SortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of entries in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension returns the bound dimension (0 while empty).
func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
