// Package responder runs the caller loop around the semantic cache:
// context, lookup, generate on miss, insert, record history.
package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/semcache"
	"github.com/hyperjump/semcache/internal/session"
	"go.uber.org/zap"
)

// Options tunes a Responder.
type Options struct {
	// WindowK is the number of prior user/ai exchanges included in the context.
	WindowK           int
	EmbedTimeout      time.Duration
	GenerationTimeout time.Duration
	// MissOnEmbedError treats an embedding failure as an uncached miss instead of an error.
	MissOnEmbedError bool
}

// Request is one user turn.
type Request struct {
	SessionID string
	Text      string
	Metadata  map[string]string
	UseCache  bool
}

// Outcome describes how a turn was served.
type Outcome struct {
	Response   string
	CacheHit   bool
	Similarity *float64
	LatencyMS  int64
	LLMCalled  bool
	Context    string
	EntryID    int64
}

// Responder answers user turns, reusing cached responses when possible.
type Responder struct {
	cache     *semcache.Cache
	generator generation.Generator
	sessions  *session.Manager
	opts      Options
	logger    *zap.Logger
}

// New returns a responder. cache may be nil, in which case every turn is generated.
func New(cache *semcache.Cache, gen generation.Generator, sessions *session.Manager, opts Options, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = session.NewManager()
	}
	return &Responder{
		cache:     cache,
		generator: gen,
		sessions:  sessions,
		opts:      opts,
		logger:    logger,
	}
}

// Sessions returns the session manager backing this responder.
func (r *Responder) Sessions() *session.Manager { return r.sessions }

// Respond serves one user turn. On a miss the generated response is inserted with the
// lookup vector, so each turn embeds at most once. The user text and the served
// response are appended to the session afterwards.
func (r *Responder) Respond(ctx context.Context, req Request) (*Outcome, error) {
	contextText := r.sessions.BuildContext(req.SessionID, req.Text, r.opts.WindowK)
	out := &Outcome{Context: contextText, EntryID: -1}
	start := time.Now()

	var lookup *semcache.LookupResult
	if req.UseCache && r.cache != nil {
		res, err := r.lookup(ctx, req.Metadata, contextText)
		switch {
		case err == nil:
			lookup = res
		case r.opts.MissOnEmbedError && errors.Is(err, embedding.ErrEmbeddingUnavailable):
			r.logger.Warn("embedding unavailable, treating as miss",
				zap.String("session_id", req.SessionID), zap.Error(err))
		default:
			return nil, err
		}
	}

	if lookup != nil && lookup.Hit {
		sim := lookup.Similarity
		out.Response = lookup.Response
		out.CacheHit = true
		out.Similarity = &sim
		out.EntryID = lookup.EntryID
	} else {
		resp, err := r.generate(ctx, contextText)
		if err != nil {
			return nil, err
		}
		out.Response = resp
		out.LLMCalled = true

		// a nil lookup means the cache was skipped or embedding failed
		if lookup != nil {
			id, err := r.cache.Insert(ctx, req.Metadata, contextText, resp, lookup.Vector)
			if err != nil {
				return nil, fmt.Errorf("failed to cache response: %w", err)
			}
			out.EntryID = id
		}
	}
	out.LatencyMS = time.Since(start).Milliseconds()

	r.sessions.Append(req.SessionID, session.RoleUser, req.Text)
	r.sessions.Append(req.SessionID, session.RoleAssistant, out.Response)

	r.logger.Debug("turn served",
		zap.String("session_id", req.SessionID),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Bool("llm_called", out.LLMCalled),
		zap.Int64("latency_ms", out.LatencyMS))
	return out, nil
}

func (r *Responder) lookup(ctx context.Context, meta map[string]string, contextText string) (*semcache.LookupResult, error) {
	if r.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.EmbedTimeout)
		defer cancel()
	}
	return r.cache.Lookup(ctx, meta, contextText)
}

func (r *Responder) generate(ctx context.Context, prompt string) (string, error) {
	if r.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.GenerationTimeout)
		defer cancel()
	}
	return r.generator.Generate(ctx, prompt)
}
