// Package embedding turns conversational context into vectors via remote
// providers, a local ONNX model or a deterministic mock.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrEmbeddingUnavailable is returned (wrapped) for every embedding failure:
// transport, quota, non-200 responses, malformed or empty vectors and deadlines.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	Close() error
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmbeddingUnavailable, fmt.Sprintf(format, args...))
}

func wrapUnavailable(err error, msg string) error {
	if errors.Is(err, ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrEmbeddingUnavailable, msg, err)
}

// validate rejects empty vectors and non-finite components.
func validate(vec []float32) error {
	if len(vec) == 0 {
		return unavailable("empty embedding")
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return unavailable("non-finite value at position %d", i)
		}
	}
	return nil
}
