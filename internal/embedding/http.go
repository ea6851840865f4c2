package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "text-embedding-004"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	DefaultOllamaModel   = "nomic-embed-text"

	geminiTaskType = "RETRIEVAL_QUERY"
)

// HTTPOptions configures an HTTPEmbedder.
type HTTPOptions struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit      float64
	MaxFailures    int
	BreakerTimeout time.Duration
}

// HTTPEmbedder calls a remote embedding API. It is safe for concurrent use.
type HTTPEmbedder struct {
	provider string
	model    string
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *CircuitBreaker
	logger   *zap.Logger
}

// NewHTTPEmbedder validates opts and returns an embedder for the chosen provider.
// The API key is read from the environment variable named by opts.APIKeyEnv.
func NewHTTPEmbedder(opts HTTPOptions, logger *zap.Logger) (*HTTPEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	e := &HTTPEmbedder{
		provider: provider,
		model:    opts.Model,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   logger,
	}

	switch provider {
	case ProviderGemini:
		e.setDefaults(DefaultGeminiBaseURL, DefaultGeminiModel)
	case ProviderOpenAI:
		e.setDefaults(DefaultOpenAIBaseURL, DefaultOpenAIModel)
	case ProviderOllama:
		e.setDefaults(DefaultOllamaBaseURL, DefaultOllamaModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", opts.Provider)
	}

	if opts.APIKeyEnv != "" {
		e.apiKey = os.Getenv(opts.APIKeyEnv)
	}
	if e.apiKey == "" && provider != ProviderOllama {
		return nil, fmt.Errorf("API key not found in environment variable: %q", opts.APIKeyEnv)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e.client = &http.Client{Timeout: timeout}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.MaxFailures > 0 {
		cooldown := opts.BreakerTimeout
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		e.breaker = NewCircuitBreaker(opts.MaxFailures, cooldown)
	}
	return e, nil
}

func (e *HTTPEmbedder) setDefaults(baseURL, model string) {
	if e.baseURL == "" {
		e.baseURL = baseURL
	}
	if e.model == "" {
		e.model = model
	}
}

// Embed returns the provider's vector for text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.breaker.Allow() {
		return nil, unavailable("circuit breaker open for %s", e.provider)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, wrapUnavailable(err, "rate limiter")
		}
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		e.breaker.Failure()
		e.logger.Debug("embedding failed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Error(err))
		return nil, err
	}
	e.breaker.Success()
	return vec, nil
}

func (e *HTTPEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	var (
		url  string
		body any
	)
	switch e.provider {
	case ProviderGemini:
		url = fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
		body = geminiEmbedRequest{
			Model:    "models/" + e.model,
			Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType: geminiTaskType,
		}
	default:
		url = e.baseURL + "/embeddings"
		body = openAIEmbedRequest{Input: []string{text}, Model: e.model}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, wrapUnavailable(err, "failed to marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, wrapUnavailable(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case e.apiKey == "":
	case e.provider == ProviderGemini:
		req.Header.Set("x-goog-api-key", e.apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, wrapUnavailable(err, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapUnavailable(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unavailable("API returned status %d: %s", resp.StatusCode, preview(data))
	}

	var vec []float32
	switch e.provider {
	case ProviderGemini:
		var r geminiEmbedResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, wrapUnavailable(err, "failed to parse response: "+preview(data))
		}
		vec = r.Embedding.Values
	default:
		var r openAIEmbedResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, wrapUnavailable(err, "failed to parse response: "+preview(data))
		}
		if r.Error != nil {
			return nil, unavailable("API error: %s", r.Error.Message)
		}
		if len(r.Data) > 0 {
			vec = r.Data[0].Embedding
		}
	}
	if err := validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// ModelName returns the configured embedding model.
func (e *HTTPEmbedder) ModelName() string { return e.model }

// Provider returns the provider name.
func (e *HTTPEmbedder) Provider() string { return e.provider }

// Close releases idle connections.
func (e *HTTPEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
