// Package semcache answers requests from previously generated responses when the
// conversational context is semantically close enough and the request metadata matches.
package semcache

import (
	"context"
	"time"

	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTopK is the number of candidates examined per lookup.
const DefaultTopK = 5

var tracer = otel.Tracer("semcache")

// LookupResult is the outcome of a lookup. Vector is the embedding of the looked-up
// context and is set on both hits and misses so a following Insert can reuse it.
type LookupResult struct {
	Hit        bool    `json:"hit"`
	Response   string  `json:"response,omitempty"`
	Similarity float64 `json:"similarity"`
	EntryID    int64   `json:"entry_id"`

	// BestSimilarity is the top candidate's score, whether or not it was reused.
	BestSimilarity float64   `json:"best_similarity"`
	Vector         []float32 `json:"-"`
}

// Cache ties an embedder, a similarity index and a reuse policy together.
// It holds no state of its own; concurrency safety comes from its collaborators.
type Cache struct {
	embedder embedding.Embedder
	index    vector.Index
	policy   *policy.Policy
	topK     int
	logger   *zap.Logger
}

// New returns a cache over the given collaborators. topK <= 0 uses DefaultTopK.
func New(embedder embedding.Embedder, index vector.Index, pol *policy.Policy, topK int, logger *zap.Logger) *Cache {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		embedder: embedder,
		index:    index,
		policy:   pol,
		topK:     topK,
		logger:   logger,
	}
}

// Lookup embeds the context, searches the top-K neighbours and returns the first one,
// in descending similarity, that passes both the threshold and the metadata check.
// Embedding and dimension errors are returned unchanged.
func (c *Cache) Lookup(ctx context.Context, meta map[string]string, contextText string) (*LookupResult, error) {
	ctx, span := tracer.Start(ctx, "semcache.Lookup")
	defer span.End()

	start := time.Now()
	defer func() { lookupDuration.Observe(time.Since(start).Seconds()) }()

	vec, err := c.embedder.Embed(ctx, contextText)
	if err != nil {
		return nil, c.lookupFailed(span, err)
	}

	candidates, err := c.index.Search(ctx, vec, c.topK)
	if err != nil {
		return nil, c.lookupFailed(span, err)
	}

	for _, cand := range candidates {
		if !c.policy.PassesThreshold(cand.Similarity) {
			// candidates are sorted, nothing further can pass
			break
		}
		if !c.policy.IsCompatible(meta, cand.Entry.Metadata) {
			continue
		}
		lookupsTotal.WithLabelValues("hit").Inc()
		span.SetAttributes(
			attribute.Bool("hit", true),
			attribute.Float64("similarity", cand.Similarity),
			attribute.Int64("entry_id", cand.EntryID),
		)
		c.logger.Debug("cache hit",
			zap.Int64("entry_id", cand.EntryID),
			zap.Float64("similarity", cand.Similarity),
			zap.Int("candidates", len(candidates)))
		return &LookupResult{
			Hit:            true,
			Response:       cand.Entry.Response,
			Similarity:     cand.Similarity,
			EntryID:        cand.EntryID,
			BestSimilarity: candidates[0].Similarity,
			Vector:         vec,
		}, nil
	}

	best := 0.0
	if len(candidates) > 0 {
		best = candidates[0].Similarity
	}
	lookupsTotal.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.Bool("hit", false), attribute.Float64("best_similarity", best))
	c.logger.Debug("cache miss",
		zap.Int("candidates", len(candidates)),
		zap.Float64("best_similarity", best),
		zap.Float64("threshold", c.policy.Threshold()))
	return &LookupResult{EntryID: -1, BestSimilarity: best, Vector: vec}, nil
}

func (c *Cache) lookupFailed(span trace.Span, err error) error {
	lookupsTotal.WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Debug("cache lookup failed", zap.Error(err))
	return err
}

// Insert stores response under the given metadata. vec is used as-is when non-nil;
// otherwise the context is embedded. Every call appends a new entry.
func (c *Cache) Insert(ctx context.Context, meta map[string]string, contextText, response string, vec []float32) (int64, error) {
	ctx, span := tracer.Start(ctx, "semcache.Insert")
	defer span.End()

	if vec == nil {
		var err error
		vec, err = c.embedder.Embed(ctx, contextText)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return -1, err
		}
	}

	id, err := c.index.Add(ctx, vec, response, meta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return -1, err
	}

	insertsTotal.Inc()
	indexEntries.Set(float64(c.index.Size()))
	span.SetAttributes(attribute.Int64("entry_id", id))
	c.logger.Debug("cache insert", zap.Int64("entry_id", id), zap.Int("size", c.index.Size()))
	return id, nil
}

// Size returns the number of cached entries.
func (c *Cache) Size() int { return c.index.Size() }

// Policy returns the reuse policy.
func (c *Cache) Policy() *policy.Policy { return c.policy }

// IndexStats describes the underlying similarity index.
type IndexStats struct {
	Type      string `json:"type"`
	Dimension int    `json:"dimension"`
	Size      int    `json:"size"`
}

// Stats reports the index type, bound dimension and entry count.
func (c *Cache) Stats() IndexStats {
	return IndexStats{Type: c.index.Type(), Dimension: c.index.Dimension(), Size: c.index.Size()}
}
