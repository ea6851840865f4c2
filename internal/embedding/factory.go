package embedding

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Options selects and configures an embedder backend.
type Options struct {
	HTTPOptions

	// ONNX and mock settings.
	ModelPath  string
	Dimensions int
	MaxTokens  int

	// CacheSize > 0 wraps the backend in a CachedEmbedder.
	CacheSize int
}

// New builds the embedder named by opts.Provider.
func New(opts Options, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		base Embedder
		err  error
	)
	switch strings.ToLower(opts.Provider) {
	case ProviderMock:
		base = NewMockEmbedder(opts.Dimensions)
	case ProviderONNX:
		base, err = NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
		base, err = NewHTTPEmbedder(opts.HTTPOptions, logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Embedder ready",
		zap.String("provider", opts.Provider),
		zap.String("model", base.ModelName()),
		zap.Int("cache_size", opts.CacheSize))

	if opts.CacheSize <= 0 {
		return base, nil
	}
	cached, err := NewCachedEmbedder(base, opts.CacheSize)
	if err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}

// ResolveModelName returns the model name an embedder built from opts would report,
// without constructing it.
func ResolveModelName(opts Options) string {
	switch strings.ToLower(opts.Provider) {
	case ProviderMock:
		return "mock"
	case ProviderONNX:
		return strings.TrimSuffix(filepath.Base(opts.ModelPath), filepath.Ext(opts.ModelPath))
	}
	if opts.Model != "" {
		return opts.Model
	}
	switch strings.ToLower(opts.Provider) {
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderOllama:
		return DefaultOllamaModel
	}
	return ""
}
