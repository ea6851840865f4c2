// Package session keeps per-session conversation history and renders the
// windowed context that the semantic cache embeds.
package session

import (
	"fmt"
	"strings"
	"sync"
)

// Role is the speaker of a turn. Its upper-cased value is the rendered prefix.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
)

// ParseRole accepts "user", "ai" and "assistant" (case-insensitive).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "ai", "assistant":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role: %q (supported: user, ai)", s)
	}
}

// Turn is a single utterance in a session.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (t Turn) render() string {
	return strings.ToUpper(string(t.Role)) + ": " + t.Text
}

type history struct {
	mu    sync.Mutex
	turns []Turn
}

// Manager owns one append-only history per session ID. Histories are locked
// individually, so sessions never contend with each other.
type Manager struct {
	mu        sync.RWMutex
	histories map[string]*history
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{histories: make(map[string]*history)}
}

func (m *Manager) get(sessionID string) *history {
	m.mu.RLock()
	h := m.histories[sessionID]
	m.mu.RUnlock()
	return h
}

func (m *Manager) getOrCreate(sessionID string) *history {
	if h := m.get(sessionID); h != nil {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[sessionID]
	if !ok {
		h = &history{}
		m.histories[sessionID] = h
	}
	return h
}

// Append adds a turn to the session, creating the history on first use.
func (m *Manager) Append(sessionID string, role Role, text string) {
	h := m.getOrCreate(sessionID)
	h.mu.Lock()
	h.turns = append(h.turns, Turn{Role: role, Text: text})
	h.mu.Unlock()
}

// BuildContext renders the last 2*windowK turns followed by the current user text,
// one "ROLE: text" line each. Reading a session does not create it.
func (m *Manager) BuildContext(sessionID, currentUserText string, windowK int) string {
	var window []Turn
	if h := m.get(sessionID); h != nil && windowK > 0 {
		h.mu.Lock()
		start := 0
		// compare against half the length so 2*windowK cannot overflow
		if windowK < (len(h.turns)+1)/2 {
			start = len(h.turns) - 2*windowK
		}
		window = append(window, h.turns[start:]...)
		h.mu.Unlock()
	}

	lines := make([]string, 0, len(window)+1)
	for _, t := range window {
		lines = append(lines, t.render())
	}
	lines = append(lines, Turn{Role: RoleUser, Text: currentUserText}.render())
	return strings.Join(lines, "\n")
}

// History returns a copy of the session's turns in chronological order.
func (m *Manager) History(sessionID string) []Turn {
	h := m.get(sessionID)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns...)
}

// Sessions returns the number of sessions with at least one turn.
func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.histories)
}
