package harness

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/eval"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/responder"
	"github.com/hyperjump/semcache/internal/semcache"
	"github.com/hyperjump/semcache/internal/session"
	"github.com/hyperjump/semcache/internal/storage"
	"github.com/hyperjump/semcache/internal/vector"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Setup names one pass over the dataset.
type Setup struct {
	Name      string
	UseCache  bool
	Threshold float64
}

// CacheSetupName returns the conventional name of a cached setup, e.g. semantic_cache_tau_0.82.
func CacheSetupName(threshold float64) string {
	return "semantic_cache_tau_" + strconv.FormatFloat(threshold, 'f', -1, 64)
}

// DefaultSetups returns the uncached baseline followed by one cached setup per threshold.
func DefaultSetups(thresholds ...float64) []Setup {
	setups := []Setup{{Name: "no_cache"}}
	for _, t := range thresholds {
		setups = append(setups, Setup{Name: CacheSetupName(t), UseCache: true, Threshold: t})
	}
	return setups
}

// EmbedderFactory builds a fresh embedder for each cached run.
type EmbedderFactory func() (embedding.Embedder, error)

// Options tunes a Runner.
type Options struct {
	WindowK           int
	TopK              int
	IndexType         string
	SystemHash        string
	EmbedTimeout      time.Duration
	GenerationTimeout time.Duration
	MissOnEmbedError  bool
	// EmbeddingModel is recorded on runs that never build an embedder.
	EmbeddingModel string
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// Runner replays conversations under different setups.
type Runner struct {
	conversations []models.Conversation
	labels        models.Labels
	newEmbedder   EmbedderFactory
	generator     generation.Generator
	opts          Options
	logger        *zap.Logger
}

// NewRunner returns a runner over the given dataset. labels may be nil.
func NewRunner(convos []models.Conversation, labels models.Labels, newEmbedder EmbedderFactory,
	gen generation.Generator, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if labels == nil {
		labels = make(models.Labels)
	}
	return &Runner{
		conversations: convos,
		labels:        labels,
		newEmbedder:   newEmbedder,
		generator:     gen,
		opts:          opts,
		logger:        logger,
	}
}

// UserTurns counts the user turns in the dataset.
func (r *Runner) UserTurns() int {
	n := 0
	for _, c := range r.conversations {
		for _, t := range c.Turns {
			if role, err := session.ParseRole(t.Role); err == nil && role == session.RoleUser {
				n++
			}
		}
	}
	return n
}

// Run replays every conversation with fresh cache state, writes one record per user
// turn to sink and returns the setup's summary.
func (r *Runner) Run(ctx context.Context, setup Setup, sink storage.RecordSink) (*models.Summary, error) {
	runID := uuid.NewString()
	sessions := session.NewManager()

	var cache *semcache.Cache
	embeddingModel := r.opts.EmbeddingModel
	if setup.UseCache {
		c, model, closeFn, err := r.newCache(setup.Threshold)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		cache, embeddingModel = c, model
	}

	resp := responder.New(cache, r.generator, sessions, responder.Options{
		WindowK:           r.opts.WindowK,
		EmbedTimeout:      r.opts.EmbedTimeout,
		GenerationTimeout: r.opts.GenerationTimeout,
		MissOnEmbedError:  r.opts.MissOnEmbedError,
	}, r.logger)

	meta := map[string]string{
		policy.KeyModelID:    r.generator.ModelName(),
		policy.KeySystemHash: r.opts.SystemHash,
	}

	r.logger.Info("Starting run",
		zap.String("setup", setup.Name),
		zap.String("run_id", runID),
		zap.Int("sessions", len(r.conversations)),
		zap.Bool("use_cache", setup.UseCache),
		zap.Float64("threshold", setup.Threshold))

	bar := r.progressBar(setup.Name)
	var records []*models.TurnRecord
	for _, convo := range r.conversations {
		for idx, turn := range convo.Turns {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			role, err := session.ParseRole(turn.Role)
			if err != nil {
				return nil, fmt.Errorf("session %s turn %d: %w", convo.SessionID, idx, err)
			}
			if role == session.RoleAssistant {
				sessions.Append(convo.SessionID, session.RoleAssistant, turn.Text)
				continue
			}

			out, err := resp.Respond(ctx, responder.Request{
				SessionID: convo.SessionID,
				Text:      turn.Text,
				Metadata:  meta,
				UseCache:  setup.UseCache,
			})
			if err != nil {
				return nil, fmt.Errorf("session %s turn %d: %w", convo.SessionID, idx, err)
			}

			rec := &models.TurnRecord{
				Setup:             setup.Name,
				SessionID:         convo.SessionID,
				TurnIndex:         idx,
				Threshold:         setup.Threshold,
				CacheHit:          out.CacheHit,
				Similarity:        out.Similarity,
				LatencyMS:         out.LatencyMS,
				LLMCalled:         out.LLMCalled,
				SemDuplicateLabel: r.labels.Lookup(convo.SessionID, idx),
				EmbeddingModel:    embeddingModel,
				GenerationModel:   r.generator.ModelName(),
				RunID:             runID,
				CreatedAt:         time.Now().UTC(),
			}
			if sink != nil {
				if err := sink.WriteRecord(ctx, rec); err != nil {
					return nil, fmt.Errorf("failed to write record: %w", err)
				}
			}
			records = append(records, rec)

			r.logger.Debug("Turn",
				zap.String("setup", setup.Name),
				zap.String("session_id", convo.SessionID),
				zap.Int("turn", idx),
				zap.Bool("hit", out.CacheHit),
				zap.Bool("llm_called", out.LLMCalled),
				zap.Int64("latency_ms", out.LatencyMS))
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	summary := eval.Summarize(setup.Name, records)
	r.logger.Info("Run complete",
		zap.String("setup", setup.Name),
		zap.Int("n", summary.N),
		zap.Float64("hit_rate", summary.HitRate),
		zap.Int64("p50_latency_ms", summary.P50LatencyMS))
	return summary, nil
}

func (r *Runner) newCache(threshold float64) (*semcache.Cache, string, func(), error) {
	if r.newEmbedder == nil {
		return nil, "", nil, fmt.Errorf("cached setup needs an embedder")
	}
	pol, err := policy.New(threshold)
	if err != nil {
		return nil, "", nil, err
	}
	idx, err := vector.NewIndex(r.opts.IndexType)
	if err != nil {
		return nil, "", nil, err
	}
	emb, err := r.newEmbedder()
	if err != nil {
		_ = idx.Close()
		return nil, "", nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	closeFn := func() {
		_ = emb.Close()
		_ = idx.Close()
	}
	return semcache.New(emb, idx, pol, r.opts.TopK, r.logger), emb.ModelName(), closeFn, nil
}

func (r *Runner) progressBar(name string) *progressbar.ProgressBar {
	if r.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(r.UserTurns(),
		progressbar.OptionSetWriter(r.opts.Progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+name+"[reset]"),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(r.opts.Progress)
		}),
	)
}
