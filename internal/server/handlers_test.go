package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperjump/semcache/internal/config"
	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/responder"
	"github.com/hyperjump/semcache/internal/semcache"
	"github.com/hyperjump/semcache/internal/session"
	"github.com/hyperjump/semcache/internal/storage"
	"github.com/hyperjump/semcache/internal/vector"
	"go.uber.org/zap"
)

type testServer struct {
	srv     *Server
	handler http.Handler
	emb     *embedding.MockEmbedder
	gen     *generation.MockGenerator
}

func newTestServer(t *testing.T, records storage.RecordStore) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Generation.Model = "mock"
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "records.db")

	emb := embedding.NewMockEmbedder(8)
	pol, err := policy.New(0.99)
	if err != nil {
		t.Fatal(err)
	}
	cache := semcache.New(emb, vector.NewMemoryIndex(), pol, 5, zap.NewNop())
	gen := generation.NewMockGenerator()
	resp := responder.New(cache, gen, session.NewManager(), responder.Options{WindowK: 0}, zap.NewNop())
	srv := NewServer(cache, resp, records, cfg, zap.NewNop())
	return &testServer{srv: srv, handler: srv.Router(), emb: emb, gen: gen}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["status"] != "ok" {
		t.Errorf("body: %v", got)
	}
}

func TestHandleChat_MissThenHit(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{SessionID: "s1", Text: "how do refunds work?"})
	if w.Code != http.StatusOK {
		t.Fatalf("first chat status: %d body=%s", w.Code, w.Body.String())
	}
	first := decode[models.ChatResponse](t, w)
	if first.CacheHit || !first.LLMCalled {
		t.Errorf("first chat should miss: %+v", first)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{SessionID: "s2", Text: "how do refunds work?"})
	second := decode[models.ChatResponse](t, w)
	if !second.CacheHit || second.LLMCalled {
		t.Errorf("second chat should hit: %+v", second)
	}
	if second.Response != first.Response {
		t.Errorf("response: got %q, want %q", second.Response, first.Response)
	}
	if ts.gen.Calls() != 1 {
		t.Errorf("generator calls: got %d, want 1", ts.gen.Calls())
	}
}

func TestHandleChat_GeneratesSessionID(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Text: "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if out := decode[models.ChatResponse](t, w); out.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestHandleChat_UseCacheFalse(t *testing.T) {
	ts := newTestServer(t, nil)
	off := false
	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{SessionID: "s", Text: "same", UseCache: &off})
		if out := decode[models.ChatResponse](t, w); out.CacheHit {
			t.Errorf("turn %d: cache disabled but got a hit", i)
		}
	}
	if ts.emb.Calls() != 0 {
		t.Errorf("embed calls: got %d, want 0", ts.emb.Calls())
	}
}

func TestHandleChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		setup  func(ts *testServer)
		status int
	}{
		{"malformed body", "{", nil, http.StatusBadRequest},
		{"empty text", models.ChatRequest{Text: "  "}, nil, http.StatusBadRequest},
		{
			"embedding unavailable",
			models.ChatRequest{Text: "hi"},
			func(ts *testServer) {
				ts.emb.SetError(errors.Join(embedding.ErrEmbeddingUnavailable, errors.New("down")))
			},
			http.StatusServiceUnavailable,
		},
		{
			"generation unavailable",
			models.ChatRequest{Text: "hi"},
			func(ts *testServer) {
				ts.gen.SetError(errors.Join(generation.ErrGenerationUnavailable, errors.New("quota")))
			},
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			if tt.setup != nil {
				tt.setup(ts)
			}
			w := ts.do(t, http.MethodPost, "/api/v1/chat", tt.body)
			if w.Code != tt.status {
				t.Errorf("status: got %d, want %d (body=%s)", w.Code, tt.status, w.Body.String())
			}
			if got := decode[map[string]string](t, w); got["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestHandleLookupAndInsert(t *testing.T) {
	ts := newTestServer(t, nil)
	meta := map[string]string{policy.KeyModelID: "m", policy.KeySystemHash: "h"}

	w := ts.do(t, http.MethodPost, "/api/v1/lookup", models.LookupRequest{Metadata: meta, Context: "USER: hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("lookup status: %d", w.Code)
	}
	if res := decode[semcache.LookupResult](t, w); res.Hit {
		t.Error("empty cache should miss")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/entries", models.EntryRequest{Metadata: meta, Context: "USER: hi", Response: "hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("insert status: %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[map[string]int64](t, w); got["id"] != 0 {
		t.Errorf("id: got %d, want 0", got["id"])
	}

	w = ts.do(t, http.MethodPost, "/api/v1/lookup", models.LookupRequest{Metadata: meta, Context: "USER: hi"})
	res := decode[semcache.LookupResult](t, w)
	if !res.Hit || res.Response != "hello" || res.EntryID != 0 {
		t.Errorf("lookup after insert: %+v", res)
	}

	other := map[string]string{policy.KeyModelID: "other", policy.KeySystemHash: "h"}
	w = ts.do(t, http.MethodPost, "/api/v1/lookup", models.LookupRequest{Metadata: other, Context: "USER: hi"})
	if res := decode[semcache.LookupResult](t, w); res.Hit {
		t.Error("incompatible metadata should miss")
	}
}

func TestHandleInsert_DimensionMismatch(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/entries", models.EntryRequest{Context: "a", Response: "r"})
	if w.Code != http.StatusCreated {
		t.Fatalf("first insert: %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/entries", models.EntryRequest{Response: "r", Vector: []float32{1, 0, 0}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", w.Code)
	}
}

func TestHandleInsert_Validation(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/entries", models.EntryRequest{Context: "a"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing response: got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/lookup", models.LookupRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty lookup context: got %d", w.Code)
	}
}

func TestHandleSessionTurnsAndContext(t *testing.T) {
	ts := newTestServer(t, nil)
	turns := []models.TurnRequest{
		{Role: "user", Text: "hi"},
		{Role: "ai", Text: "hello"},
	}
	for _, turn := range turns {
		w := ts.do(t, http.MethodPost, "/api/v1/sessions/abc/turns", turn)
		if w.Code != http.StatusCreated {
			t.Fatalf("append %s: %d", turn.Role, w.Code)
		}
	}

	w := ts.do(t, http.MethodGet, "/api/v1/sessions/abc/context?text=next&window=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("context status: %d", w.Code)
	}
	got := decode[map[string]string](t, w)
	want := "USER: hi\nAI: hello\nUSER: next"
	if got["context"] != want {
		t.Errorf("context: got %q, want %q", got["context"], want)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/abc/context?text=next&window=0", nil)
	if got := decode[map[string]string](t, w); got["context"] != "USER: next" {
		t.Errorf("window 0 context: got %q", got["context"])
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/abc/context?window=x", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad window: got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/sessions/abc/turns", models.TurnRequest{Role: "system", Text: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad role: got %d", w.Code)
	}
}

func TestHandleContext_HugeWindow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/v1/sessions/s1/turns", models.TurnRequest{Role: "user", Text: "hi"})

	w := ts.do(t, http.MethodGet, "/api/v1/sessions/s1/context?text=x&window=4611686018427387905", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if got := decode[map[string]string](t, w); got["context"] != "USER: hi\nUSER: x" {
		t.Errorf("context: got %q", got["context"])
	}
}

func TestRespondFailure_HidesUpstreamDetail(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	t.Setenv("TEST_GEMINI_KEY", "sk-SECRET-123")
	emb, err := embedding.NewHTTPEmbedder(embedding.HTTPOptions{
		Provider:  embedding.ProviderGemini,
		BaseURL:   url,
		APIKeyEnv: "TEST_GEMINI_KEY",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	pol, err := policy.New(0.9)
	if err != nil {
		t.Fatal(err)
	}
	cache := semcache.New(emb, vector.NewMemoryIndex(), pol, 5, zap.NewNop())
	resp := responder.New(cache, generation.NewMockGenerator(), session.NewManager(), responder.Options{}, zap.NewNop())
	srv := NewServer(cache, resp, nil, config.Default(), zap.NewNop())
	ts := &testServer{srv: srv, handler: srv.Router()}

	for _, path := range []string{"/api/v1/lookup", "/api/v1/chat"} {
		var body any = models.LookupRequest{Context: "USER: hi"}
		if path == "/api/v1/chat" {
			body = models.ChatRequest{Text: "hi"}
		}
		w := ts.do(t, http.MethodPost, path, body)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status: got %d, want 503", path, w.Code)
		}
		if bytes.Contains(w.Body.Bytes(), []byte("sk-SECRET-123")) || bytes.Contains(w.Body.Bytes(), []byte(url)) {
			t.Errorf("%s body leaks upstream detail: %s", path, w.Body.String())
		}
		if got := decode[map[string]string](t, w); got["error"] != embedding.ErrEmbeddingUnavailable.Error() {
			t.Errorf("%s error: got %q", path, got["error"])
		}
	}
}

func TestHandleStatus(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.WriteRecord(context.Background(), &models.TurnRecord{Setup: "no_cache", SessionID: "s"}); err != nil {
		t.Fatal(err)
	}

	ts := newTestServer(t, store)
	ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{SessionID: "s", Text: "hi"})

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Index     semcache.IndexStats `json:"index"`
		Threshold float64             `json:"threshold"`
		Sessions  int                 `json:"sessions"`
		Records   int64               `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Index.Size != 1 || out.Index.Type != "memory" {
		t.Errorf("index stats: %+v", out.Index)
	}
	if out.Threshold != 0.99 || out.Sessions != 1 || out.Records != 1 {
		t.Errorf("status: %+v", out)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Text: "hi"})
	w := ts.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("semcache_lookups_total")) {
		t.Error("metrics output missing semcache_lookups_total")
	}
}
