package models

import (
	"errors"
	"fmt"
	"strings"
)

// ChatRequest asks the responder to answer one user turn.
type ChatRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	// UseCache defaults to true when omitted.
	UseCache *bool `json:"use_cache,omitempty"`
}

// Validate rejects empty text and trims the session id.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text cannot be empty")
	}
	r.SessionID = strings.TrimSpace(r.SessionID)
	return nil
}

// CacheEnabled reports whether the request should consult the cache.
func (r *ChatRequest) CacheEnabled() bool {
	return r.UseCache == nil || *r.UseCache
}

// ChatResponse is the served answer for a ChatRequest.
type ChatResponse struct {
	SessionID  string   `json:"session_id"`
	Response   string   `json:"response"`
	CacheHit   bool     `json:"cache_hit"`
	Similarity *float64 `json:"similarity"`
	LatencyMS  int64    `json:"latency_ms"`
	LLMCalled  bool     `json:"llm_called"`
	Context    string   `json:"context,omitempty"`
}

// LookupRequest probes the cache for a rendered context.
type LookupRequest struct {
	Metadata map[string]string `json:"metadata"`
	Context  string            `json:"context"`
}

// Validate rejects an empty context.
func (r *LookupRequest) Validate() error {
	if r.Context == "" {
		return errors.New("context cannot be empty")
	}
	return nil
}

// EntryRequest inserts a response for a rendered context. Vector is optional.
type EntryRequest struct {
	Metadata map[string]string `json:"metadata"`
	Context  string            `json:"context"`
	Response string            `json:"response"`
	Vector   []float32         `json:"vector,omitempty"`
}

// Validate requires a response and either a context or a vector.
func (r *EntryRequest) Validate() error {
	if r.Response == "" {
		return errors.New("response cannot be empty")
	}
	if r.Context == "" && len(r.Vector) == 0 {
		return errors.New("context or vector is required")
	}
	return nil
}

// TurnRequest appends a turn to a session.
type TurnRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Validate checks the role name.
func (r *TurnRequest) Validate() error {
	switch strings.ToLower(r.Role) {
	case "user", "ai", "assistant":
		return nil
	default:
		return fmt.Errorf("unknown role %q (supported: user, ai)", r.Role)
	}
}
