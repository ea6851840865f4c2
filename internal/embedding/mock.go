package embedding

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/blas/blas32"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. It derives a
// fixed-dimension vector from the text hash, so equal text always gets an equal vector.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64

	mu        sync.RWMutex
	overrides map[string][]float32
	err       error
}

// NewMockEmbedder returns an embedder that produces vectors of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, overrides: make(map[string][]float32)}
}

// Set pins the vector returned for text.
func (e *MockEmbedder) Set(text string, vec []float32) {
	e.mu.Lock()
	e.overrides[text] = clone(vec)
	e.mu.Unlock()
}

// SetError makes every subsequent Embed fail with err wrapped in ErrEmbeddingUnavailable.
// A nil err restores normal behaviour.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Embed returns the pinned vector for text, or one derived from its hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, wrapUnavailable(err, "mock embedder")
	}
	e.mu.RLock()
	failure := e.err
	pinned, ok := e.overrides[text]
	e.mu.RUnlock()
	if failure != nil {
		return nil, wrapUnavailable(failure, "mock embedder")
	}
	if ok {
		return clone(pinned), nil
	}

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	NormalizeL2Slice(emb)
	return emb, nil
}

// Calls returns how many times Embed was invoked.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName identifies the mock.
func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}

// NormalizeL2Slice normalizes the slice in place to unit L2 norm. Zero vectors are
// left unchanged.
func NormalizeL2Slice(x []float32) {
	if len(x) == 0 {
		return
	}
	v := blas32.Vector{N: len(x), Inc: 1, Data: x}
	norm := blas32.Nrm2(v)
	if norm == 0 {
		return
	}
	blas32.Scal(1/norm, v)
}
