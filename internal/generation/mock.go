package generation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MockGenerator returns a deterministic reply derived from the prompt and counts calls.
type MockGenerator struct {
	calls atomic.Int64

	mu    sync.RWMutex
	reply func(prompt string) string
	err   error
}

// NewMockGenerator returns a generator that answers "response to: <last line of prompt>".
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// SetReply overrides the reply function.
func (g *MockGenerator) SetReply(fn func(prompt string) string) {
	g.mu.Lock()
	g.reply = fn
	g.mu.Unlock()
}

// SetError makes subsequent calls fail; nil restores normal behaviour.
func (g *MockGenerator) SetError(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", wrapUnavailable(err, "mock generator")
	}
	g.mu.RLock()
	reply, failure := g.reply, g.err
	g.mu.RUnlock()
	if failure != nil {
		return "", wrapUnavailable(failure, "mock generator")
	}
	if reply != nil {
		return reply(prompt), nil
	}
	return fmt.Sprintf("response to: %s", lastLine(prompt)), nil
}

// Calls returns how many times Generate was invoked.
func (g *MockGenerator) Calls() int { return int(g.calls.Load()) }

func (g *MockGenerator) ModelName() string { return "mock" }

func lastLine(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
