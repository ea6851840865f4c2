package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/semcache"
	"github.com/hyperjump/semcache/internal/session"
	"github.com/hyperjump/semcache/internal/vector"
	"go.uber.org/zap"
)

var testMeta = map[string]string{policy.KeyModelID: "mock", policy.KeySystemHash: "default_v1"}

type fixture struct {
	emb   *embedding.MockEmbedder
	gen   *generation.MockGenerator
	cache *semcache.Cache
	resp  *Responder
}

func newFixture(t *testing.T, threshold float64, opts Options) *fixture {
	t.Helper()
	emb := embedding.NewMockEmbedder(16)
	pol, err := policy.New(threshold)
	if err != nil {
		t.Fatal(err)
	}
	cache := semcache.New(emb, vector.NewMemoryIndex(), pol, 0, zap.NewNop())
	gen := generation.NewMockGenerator()
	return &fixture{
		emb:   emb,
		gen:   gen,
		cache: cache,
		resp:  New(cache, gen, session.NewManager(), opts, zap.NewNop()),
	}
}

func TestRespond_MissThenHit(t *testing.T) {
	f := newFixture(t, 0.99, Options{WindowK: 0})
	ctx := context.Background()

	first, err := f.resp.Respond(ctx, Request{SessionID: "a", Text: "refund window?", Metadata: testMeta, UseCache: true})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if first.CacheHit || !first.LLMCalled || first.Similarity != nil {
		t.Errorf("first turn should miss: %+v", first)
	}
	if first.EntryID != 0 {
		t.Errorf("EntryID=%d, want 0", first.EntryID)
	}
	if f.emb.Calls() != 1 {
		t.Errorf("embed calls=%d, want 1 (insert reuses lookup vector)", f.emb.Calls())
	}

	// window 0 keeps the context independent of history
	second, err := f.resp.Respond(ctx, Request{SessionID: "b", Text: "refund window?", Metadata: testMeta, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || second.LLMCalled {
		t.Errorf("second turn should hit: %+v", second)
	}
	if second.Response != first.Response {
		t.Errorf("hit response=%q, want %q", second.Response, first.Response)
	}
	if second.Similarity == nil || *second.Similarity < 0.999 {
		t.Errorf("similarity=%v", second.Similarity)
	}
	if f.gen.Calls() != 1 {
		t.Errorf("generator calls=%d, want 1", f.gen.Calls())
	}
}

func TestRespond_AppendsHistory(t *testing.T) {
	f := newFixture(t, 0.82, Options{WindowK: 2})
	ctx := context.Background()
	out, err := f.resp.Respond(ctx, Request{SessionID: "s", Text: "hello", Metadata: testMeta, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Context != "USER: hello" {
		t.Errorf("Context=%q", out.Context)
	}
	h := f.resp.Sessions().History("s")
	if len(h) != 2 || h[0].Role != session.RoleUser || h[1].Role != session.RoleAssistant || h[1].Text != out.Response {
		t.Errorf("history=%+v", h)
	}

	out, err = f.resp.Respond(ctx, Request{SessionID: "s", Text: "again", Metadata: testMeta, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	want := "USER: hello\nAI: response to: USER: hello\nUSER: again"
	if out.Context != want {
		t.Errorf("Context=%q, want %q", out.Context, want)
	}
}

func TestRespond_CacheDisabled(t *testing.T) {
	f := newFixture(t, 0, Options{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		out, err := f.resp.Respond(ctx, Request{SessionID: "s", Text: "same", Metadata: testMeta})
		if err != nil {
			t.Fatal(err)
		}
		if out.CacheHit || !out.LLMCalled {
			t.Errorf("turn %d: expected generation without cache: %+v", i, out)
		}
	}
	if f.emb.Calls() != 0 {
		t.Errorf("embed calls=%d, want 0", f.emb.Calls())
	}
	if f.cache.Size() != 0 {
		t.Errorf("cache size=%d, want 0", f.cache.Size())
	}
}

func TestRespond_EmbeddingFailure(t *testing.T) {
	t.Run("surfaced", func(t *testing.T) {
		f := newFixture(t, 0.82, Options{})
		f.emb.SetError(errors.New("quota"))
		_, err := f.resp.Respond(context.Background(), Request{SessionID: "s", Text: "x", Metadata: testMeta, UseCache: true})
		if !errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			t.Errorf("err=%v, want ErrEmbeddingUnavailable", err)
		}
		if f.gen.Calls() != 0 {
			t.Error("generator should not be called")
		}
		if len(f.resp.Sessions().History("s")) != 0 {
			t.Error("failed turn must not be recorded")
		}
	})
	t.Run("treated as miss", func(t *testing.T) {
		f := newFixture(t, 0.82, Options{MissOnEmbedError: true})
		f.emb.SetError(errors.New("quota"))
		out, err := f.resp.Respond(context.Background(), Request{SessionID: "s", Text: "x", Metadata: testMeta, UseCache: true})
		if err != nil {
			t.Fatalf("Respond: %v", err)
		}
		if out.CacheHit || !out.LLMCalled {
			t.Errorf("expected uncached generation: %+v", out)
		}
		if f.cache.Size() != 0 {
			t.Errorf("nothing should be inserted without a vector, size=%d", f.cache.Size())
		}
	})
}

func TestRespond_GenerationFailure(t *testing.T) {
	f := newFixture(t, 0.82, Options{})
	f.gen.SetError(errors.New("503"))
	_, err := f.resp.Respond(context.Background(), Request{SessionID: "s", Text: "x", Metadata: testMeta, UseCache: true})
	if !errors.Is(err, generation.ErrGenerationUnavailable) {
		t.Errorf("err=%v, want ErrGenerationUnavailable", err)
	}
	if f.cache.Size() != 0 {
		t.Error("nothing should be cached when generation fails")
	}
}

func TestRespond_IncompatibleMetadataRegenerates(t *testing.T) {
	f := newFixture(t, 0.5, Options{})
	ctx := context.Background()
	if _, err := f.resp.Respond(ctx, Request{SessionID: "a", Text: "q", Metadata: testMeta, UseCache: true}); err != nil {
		t.Fatal(err)
	}
	other := map[string]string{policy.KeyModelID: "other", policy.KeySystemHash: "default_v1"}
	out, err := f.resp.Respond(ctx, Request{SessionID: "b", Text: "q", Metadata: other, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.CacheHit {
		t.Error("different model_id must not reuse")
	}
	if f.cache.Size() != 2 {
		t.Errorf("cache size=%d, want 2", f.cache.Size())
	}
}
