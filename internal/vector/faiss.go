//go:build faiss && cgo
// +build faiss,cgo

// Package vector provides FAISS-based vector index for large caches.
package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// tieSlack is how many extra neighbours are requested from FAISS so that entries
// tied with the k-th score can still be ordered by ascending ID.
const tieSlack = 16

// FAISSIndex is a vector index using FAISS IndexFlatIP over normalized vectors,
// which is equivalent to cosine similarity. The FAISS index is created on the
// first Add, once the dimension is known. Entries live in Go; FAISS labels are
// entry positions, which equal entry IDs because entries are never removed.
type FAISSIndex struct {
	index     *C.FaissIndexFlatIP
	dimension int
	entries   []*Entry
	nextID    int64
	mu        sync.RWMutex
}

// NewFAISSIndex creates an empty FAISS-backed index.
func NewFAISSIndex() (*FAISSIndex, error) {
	return &FAISSIndex{entries: make([]*Entry, 0)}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add normalizes vec, adds it to FAISS and stores the entry.
func (f *FAISSIndex) Add(ctx context.Context, vec []float32, response string, metadata map[string]string) (int64, error) {
	if len(vec) == 0 {
		return -1, fmt.Errorf("cannot add empty vector")
	}
	normalized := Normalize(vec)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index == nil {
		var index *C.FaissIndexFlatIP
		if ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(len(vec))); ret != 0 {
			return -1, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
		}
		f.index = index
		f.dimension = len(vec)
	} else if len(vec) != f.dimension {
		return -1, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimension)
	}

	ret := C.faiss_Index_add(f.index, 1, (*C.float)(unsafe.Pointer(&normalized[0])))
	if ret != 0 {
		return -1, fmt.Errorf("failed to add vector to FAISS index: %s", faissLastError())
	}

	id := f.nextID
	f.entries = append(f.entries, &Entry{
		ID:       id,
		Vector:   normalized,
		Response: response,
		Metadata: copyMetadata(metadata),
	})
	f.nextID++
	return id, nil
}

// Search returns the top-k entries by inner product of normalized vectors.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*SimilarityResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.index == nil || k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimension)
	}

	q := Normalize(query)
	fetch := k + tieSlack
	if fetch > ntotal {
		fetch = ntotal
	}
	distances := make([]float32, fetch)
	labels := make([]int64, fetch)

	ret := C.faiss_Index_search(
		f.index,
		1, // nq (number of queries)
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(fetch),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]*SimilarityResult, 0, fetch)
	for i := 0; i < fetch; i++ {
		label := labels[i]
		if label < 0 || int(label) >= len(f.entries) {
			continue // fewer than fetch vectors
		}
		e := f.entries[label]
		// Rescore in Go so ties compare exactly like MemoryIndex.
		results = append(results, &SimilarityResult{
			EntryID:    e.ID,
			Similarity: InnerProduct(q, e.Vector),
			Entry:      e,
		})
	}
	SortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of stored entries.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Dimension returns the bound dimension (0 while empty).
func (f *FAISSIndex) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimension
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
