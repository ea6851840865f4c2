package generation

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
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
)

// Options configures an HTTPGenerator.
type Options struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
}

// HTTPGenerator calls a remote generation API. It is safe for concurrent use.
type HTTPGenerator struct {
	provider string
	model    string
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewHTTPGenerator returns a generator for opts.Provider.
func NewHTTPGenerator(opts Options, logger *zap.Logger) (*HTTPGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &HTTPGenerator{
		provider: strings.ToLower(strings.TrimSpace(opts.Provider)),
		model:    opts.Model,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   logger,
	}
	switch g.provider {
	case ProviderGemini:
		g.setDefaults(DefaultGeminiBaseURL, DefaultGeminiModel)
	case ProviderOpenAI:
		g.setDefaults(DefaultOpenAIBaseURL, DefaultOpenAIModel)
	case ProviderOllama:
		g.setDefaults(DefaultOllamaBaseURL, DefaultOllamaModel)
	default:
		return nil, fmt.Errorf("unsupported generation provider: %q", opts.Provider)
	}

	if opts.APIKeyEnv != "" {
		g.apiKey = os.Getenv(opts.APIKeyEnv)
	}
	if g.apiKey == "" && g.provider != ProviderOllama {
		return nil, fmt.Errorf("API key not found in environment variable: %q", opts.APIKeyEnv)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	g.client = &http.Client{Timeout: timeout}
	if opts.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return g, nil
}

func (g *HTTPGenerator) setDefaults(baseURL, model string) {
	if g.baseURL == "" {
		g.baseURL = baseURL
	}
	if g.model == "" {
		g.model = model
	}
}

// Generate sends prompt as a single user message and returns the model's text.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", wrapUnavailable(err, "rate limiter")
		}
	}

	var (
		url  string
		body any
	)
	switch g.provider {
	case ProviderGemini:
		url = fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
		body = geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}
	case ProviderOpenAI:
		url = g.baseURL + "/chat/completions"
		body = chatRequest{Model: g.model, Messages: []chatMessage{{Role: "user", Content: prompt}}}
	case ProviderOllama:
		url = g.baseURL + "/api/generate"
		body = ollamaRequest{Model: g.model, Prompt: prompt, Stream: false}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", wrapUnavailable(err, "failed to marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", wrapUnavailable(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	switch g.provider {
	case ProviderGemini:
		req.Header.Set("x-goog-api-key", g.apiKey)
	case ProviderOpenAI:
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", wrapUnavailable(err, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapUnavailable(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", unavailable("API returned status %d: %s", resp.StatusCode, preview(data))
	}

	text, err := g.parse(data)
	if err != nil {
		return "", err
	}
	g.logger.Debug("generation completed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Duration("took", time.Since(start)))
	return text, nil
}

func (g *HTTPGenerator) parse(data []byte) (string, error) {
	var text string
	switch g.provider {
	case ProviderGemini:
		var r geminiResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return "", wrapUnavailable(err, "failed to parse response")
		}
		if len(r.Candidates) > 0 {
			var sb strings.Builder
			for _, p := range r.Candidates[0].Content.Parts {
				sb.WriteString(p.Text)
			}
			text = sb.String()
		}
	case ProviderOpenAI:
		var r chatResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return "", wrapUnavailable(err, "failed to parse response")
		}
		if len(r.Choices) > 0 {
			text = r.Choices[0].Message.Content
		}
	case ProviderOllama:
		var r ollamaResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return "", wrapUnavailable(err, "failed to parse response")
		}
		text = r.Response
	}
	if strings.TrimSpace(text) == "" {
		return "", unavailable("empty response from %s", g.provider)
	}
	return text, nil
}

// ModelName returns the configured generation model.
func (g *HTTPGenerator) ModelName() string { return g.model }

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
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}
