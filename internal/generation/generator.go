// Package generation calls the text-generation model that the semantic cache sits in front of.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationUnavailable wraps every generation failure.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Generator produces a response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGenerationUnavailable, fmt.Sprintf(format, args...))
}

func wrapUnavailable(err error, msg string) error {
	if errors.Is(err, ErrGenerationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrGenerationUnavailable, msg, err)
}
