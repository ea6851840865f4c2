// Package vector provides the similarity index behind the semantic cache.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with the
// dimension the index was bound to by its first insertion.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index stores normalized vectors with their cached responses and ranks them by
// cosine similarity.
type Index interface {
	// Add normalizes vec and stores it with the response and metadata. Returns the new entry ID.
	Add(ctx context.Context, vec []float32, response string, metadata map[string]string) (int64, error)
	// Search returns up to k entries by descending similarity, ties by ascending ID.
	Search(ctx context.Context, query []float32, k int) ([]*SimilarityResult, error)
	Size() int
	// Dimension returns the bound dimension, or 0 before the first insertion.
	Dimension() int
	Type() string
	Close() error
}

// Entry is a cached response and the normalized vector of the context that produced it.
// Entries are immutable once added.
type Entry struct {
	ID       int64
	Vector   []float32
	Response string
	Metadata map[string]string
}

// SimilarityResult is a single search hit.
type SimilarityResult struct {
	EntryID    int64
	Similarity float64 // cosine similarity in [-1, 1]
	Entry      *Entry
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
