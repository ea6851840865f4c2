// Package main is the semcache CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/semcache/internal/cli"
	"github.com/hyperjump/semcache/internal/config"
	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/eval"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/harness"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/responder"
	"github.com/hyperjump/semcache/internal/semcache"
	"github.com/hyperjump/semcache/internal/server"
	"github.com/hyperjump/semcache/internal/session"
	"github.com/hyperjump/semcache/internal/storage"
	"github.com/hyperjump/semcache/internal/vector"
	"github.com/hyperjump/semcache/internal/watcher"
	"github.com/hyperjump/semcache/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var version = "dev"

// loadConfig resolves and loads the config. When nothing was given and no config
// file exists at the default location, built-in defaults are used.
// Returns the config and the path that was loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	resolved := config.Resolve(path)
	if path == "" && resolved == config.DefaultPath {
		if _, err := os.Stat(resolved); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "run":
		runHarness()
	case "evaluate":
		runEvaluate()
	case "chat":
		runChat()
	case "context":
		runContext()
	case "version", "--version", "-v":
		fmt.Printf("semcache version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (default: ./config.yaml, then "+config.DefaultPath+")")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, level, err := utils.NewLeveledLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	if cfg.Tracing.Enabled {
		shutdown, err := initTracer()
		if err != nil {
			logger.Fatal("Failed to init tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if resolvedConfigPath != "" {
		w, err := newConfigWatcher(resolvedConfigPath, level, *debug, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			w.Start(watchCtx)
			defer w.Stop()
		}
	}

	var records storage.RecordStore
	if components.Records != nil {
		records = components.Records
	}
	srv := server.NewServer(components.Cache, components.Responder, records, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newConfigWatcher reloads the config on change and applies its debug flag.
// Other settings are fixed for the life of the process.
func newConfigWatcher(path string, level zap.AtomicLevel, forceDebug bool, logger *zap.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(func(changed string) {
		cfg, err := config.Load(changed)
		if err != nil {
			logger.Warn("config reload failed", zap.String("path", changed), zap.Error(err))
			return
		}
		debug := cfg.Debug || forceDebug
		utils.SetDebug(level, debug)
		logger.Info("config reloaded", zap.String("path", changed), zap.Bool("debug", debug))
	}, watcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := w.WatchFile(path); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "semcache"),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

// Components holds the long-lived objects behind the server.
type Components struct {
	Embedder  embedding.Embedder
	Index     vector.Index
	Cache     *semcache.Cache
	Responder *responder.Responder
	Records   *storage.SQLiteStorage
}

func (c *Components) Close() {
	if c.Records != nil {
		_ = c.Records.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	var err error

	c.Embedder, err = embedding.New(embeddingOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	c.Index, err = newIndex(cfg.Cache.IndexType, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	pol, err := policy.New(cfg.Cache.ThresholdOrDefault())
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Cache = semcache.New(c.Embedder, c.Index, pol, cfg.Cache.TopK, logger)

	gen, err := generation.New(generationOptions(cfg), logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	c.Responder = responder.New(c.Cache, gen, session.NewManager(), responderOptions(cfg), logger)

	if cfg.Storage.DatabasePath != "" {
		c.Records, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Warn("record store unavailable; status will omit record counts",
				zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
			c.Records = nil
		}
	}
	return c, nil
}

// newIndex builds the configured index, falling back to memory when FAISS is unavailable.
func newIndex(indexType string, logger *zap.Logger) (vector.Index, error) {
	idx, err := vector.NewIndex(indexType)
	if err == nil {
		return idx, nil
	}
	if indexType == "" || indexType == string(vector.IndexTypeMemory) {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Warn("failed to create vector index, falling back to memory",
		zap.String("requested_type", indexType), zap.Error(err))
	return vector.NewMemoryIndex(), nil
}

func embeddingOptions(cfg *config.Config) embedding.Options {
	e := cfg.Embedding
	return embedding.Options{
		HTTPOptions: embedding.HTTPOptions{
			Provider:       e.Provider,
			Model:          e.Model,
			BaseURL:        e.BaseURL,
			APIKeyEnv:      e.APIKeyEnv,
			Timeout:        e.Timeout,
			RateLimit:      e.RateLimit,
			MaxFailures:    e.MaxFailures,
			BreakerTimeout: e.BreakerTimeout,
		},
		ModelPath:  e.ModelPath,
		Dimensions: e.Dimensions,
		MaxTokens:  e.MaxTokens,
		CacheSize:  e.CacheSize,
	}
}

func generationOptions(cfg *config.Config) generation.Options {
	g := cfg.Generation
	return generation.Options{
		Provider:  g.Provider,
		Model:     g.Model,
		BaseURL:   g.BaseURL,
		APIKeyEnv: g.APIKeyEnv,
		Timeout:   g.Timeout,
		RateLimit: g.RateLimit,
	}
}

func responderOptions(cfg *config.Config) responder.Options {
	return responder.Options{
		WindowK:           cfg.Session.WindowK,
		EmbedTimeout:      cfg.Embedding.Timeout,
		GenerationTimeout: cfg.Generation.Timeout,
		MissOnEmbedError:  cfg.Cache.MissOnEmbedError,
	}
}

func harnessOptions(cfg *config.Config) harness.Options {
	return harness.Options{
		WindowK:           cfg.Session.WindowK,
		TopK:              cfg.Cache.TopK,
		IndexType:         cfg.Cache.IndexType,
		SystemHash:        cfg.Cache.SystemHash,
		EmbedTimeout:      cfg.Embedding.Timeout,
		GenerationTimeout: cfg.Generation.Timeout,
		MissOnEmbedError:  cfg.Cache.MissOnEmbedError,
		EmbeddingModel:    embedding.ResolveModelName(embeddingOptions(cfg)),
	}
}

// parseThresholds parses a comma-separated list of thresholds in [0, 1].
// Empty input yields fallback.
func parseThresholds(s string, fallback float64) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return []float64{fallback}, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", part, err)
		}
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("threshold %v outside [0, 1]", t)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []float64{fallback}, nil
	}
	return out, nil
}

func runHarness() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	dataPath := fs.String("data", "", "conversation dataset (JSON array of {sessionid, turns})")
	labelsPath := fs.String("labels", "", "optional semantic-duplicate labels (.csv or .xlsx)")
	resultsDir := fs.String("results", "", "directory for per-setup JSONL logs and summary.csv (default from config)")
	thresholds := fs.String("thresholds", "", "comma-separated cache thresholds (default from config)")
	withSQLite := fs.Bool("sqlite", false, "also write records to the configured SQLite database")
	skipBaseline := fs.Bool("skip-baseline", false, "do not run the no_cache setup")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	outputFormat := fs.String("output", "text", "summary output format: text, json or csv")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: semcache run --data <conversations.json> [flags]")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	taus, err := parseThresholds(*thresholds, cfg.Cache.ThresholdOrDefault())
	if err != nil {
		fatalf("%v", err)
	}
	dir := *resultsDir
	if dir == "" {
		dir = cfg.Storage.ResultsDir
	}

	convos, err := harness.LoadConversations(*dataPath)
	if err != nil {
		fatalf("Failed to load dataset: %v", err)
	}
	var labels models.Labels
	if *labelsPath != "" {
		labels, err = harness.LoadLabels(*labelsPath, logger)
		if err != nil {
			fatalf("Failed to load labels: %v", err)
		}
	}

	gen, err := generation.New(generationOptions(cfg), logger)
	if err != nil {
		fatalf("Failed to initialize generator: %v", err)
	}
	opts := harnessOptions(cfg)
	if !*noProgress {
		opts.Progress = os.Stderr
	}
	embOpts := embeddingOptions(cfg)
	runner := harness.NewRunner(convos, labels, func() (embedding.Embedder, error) {
		return embedding.New(embOpts, logger)
	}, gen, opts, logger)

	var dbSink storage.RecordSink
	if *withSQLite {
		db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fatalf("Failed to open record database: %v", err)
		}
		defer db.Close()
		dbSink = db
	}

	setups := harness.DefaultSetups(taus...)
	if *skipBaseline {
		setups = setups[1:]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summaries, err := runSetups(ctx, runner, setups, dir, dbSink)
	if err != nil {
		fatalf("Run failed: %v", err)
	}
	if err := writeRunArtifacts(dir, cfg, summaries); err != nil {
		logger.Warn("failed to write run artifacts", zap.String("dir", dir), zap.Error(err))
	}
	if err := cli.WriteSummaries(os.Stdout, summaries, format); err != nil {
		fatalf("%v", err)
	}
}

// runSetups runs each setup in order, logging records to <dir>/<setup>.jsonl and to db when set.
func runSetups(ctx context.Context, runner *harness.Runner, setups []harness.Setup, dir string, db storage.RecordSink) ([]*models.Summary, error) {
	summaries := make([]*models.Summary, 0, len(setups))
	for _, setup := range setups {
		jsonl, err := storage.NewJSONLWriter(filepath.Join(dir, setup.Name+".jsonl"))
		if err != nil {
			return nil, err
		}
		sinks := storage.MultiSink{jsonl}
		if db != nil {
			sinks = append(sinks, db)
		}
		summary, err := runner.Run(ctx, setup, sinks)
		if closeErr := jsonl.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, fmt.Errorf("setup %s: %w", setup.Name, err)
		}
		summary.LogPath = jsonl.Path()
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// writeRunArtifacts writes summary.csv and a snapshot of the effective config next to the logs.
func writeRunArtifacts(dir string, cfg *config.Config, summaries []*models.Summary) error {
	f, err := os.Create(filepath.Join(dir, "summary.csv"))
	if err != nil {
		return err
	}
	if err := eval.WriteCSV(f, summaries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return config.Save(filepath.Join(dir, "config.yaml"), cfg)
}

func runEvaluate() {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	dir := fs.String("dir", "", "directory of per-setup JSONL logs (default: results dir from config)")
	dbPath := fs.String("db", "", "evaluate records from this SQLite database instead of JSONL logs")
	outputFormat := fs.String("output", "text", "output format: text, json or csv")
	watch := fs.Bool("watch", false, "re-evaluate whenever a JSONL log changes")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logsDir := *dir
	if logsDir == "" {
		logsDir = cfg.Storage.ResultsDir
	}

	evaluate := func() ([]*models.Summary, error) {
		if *dbPath != "" {
			return evaluateDB(context.Background(), *dbPath)
		}
		return evaluateDir(logsDir)
	}

	summaries, err := evaluate()
	if err != nil {
		fatalf("Evaluate failed: %v", err)
	}
	if err := cli.WriteSummaries(os.Stdout, summaries, format); err != nil {
		fatalf("%v", err)
	}
	if !*watch || *dbPath != "" {
		return
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	w, err := watcher.New(func(string) {
		summaries, err := evaluate()
		if err != nil {
			logger.Warn("re-evaluate failed", zap.Error(err))
			return
		}
		fmt.Fprintf(os.Stdout, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
		_ = cli.WriteSummaries(os.Stdout, summaries, format)
	}, watcher.WithExtensions(".jsonl"), watcher.WithDebounce(time.Second), watcher.WithLogger(logger))
	if err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	if err := w.WatchDir(logsDir); err != nil {
		fatalf("Failed to watch %s: %v", logsDir, err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	w.Start(ctx)
	<-ctx.Done()
}

// evaluateDir summarizes every JSONL log under dir; the setup is the file name.
func evaluateDir(dir string) ([]*models.Summary, error) {
	paths, err := eval.Discover(dir)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.Summary, 0, len(paths))
	for _, p := range paths {
		records, err := eval.LoadJSONL(p)
		if err != nil {
			return nil, err
		}
		s := eval.Summarize(eval.SetupName(p), records)
		s.LogPath = p
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// evaluateDB summarizes each setup stored in the SQLite database at path.
func evaluateDB(ctx context.Context, path string) ([]*models.Summary, error) {
	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	setups, err := db.ListSetups(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.Summary, 0, len(setups))
	for _, setup := range setups {
		records, err := db.ListRecords(ctx, setup)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, eval.Summarize(setup, records))
	}
	return summaries, nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "session id (generated by the server when empty)")
	noCache := fs.Bool("no-cache", false, "bypass the semantic cache")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fmt.Fprintln(os.Stderr, "Usage: semcache chat [flags] <text>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	req := &models.ChatRequest{SessionID: *sessionID, Text: text}
	if *noCache {
		off := false
		req.UseCache = &off
	}
	resp, err := chatViaHTTP(*serverURL, req)
	if err != nil {
		fatalf("Chat failed: %v", err)
	}
	if err := cli.WriteChatResponse(os.Stdout, resp, format); err != nil {
		fatalf("%v", err)
	}
}

func chatViaHTTP(serverURL string, req *models.ChatRequest) (*models.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "session id")
	window := fs.Int("window", -1, "number of prior exchanges (default from server config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "Usage: semcache context --session <id> [--window N] <text>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	out, err := contextViaHTTP(*serverURL, *sessionID, joinArgs(fs.Args()), *window)
	if err != nil {
		fatalf("Context failed: %v", err)
	}
	fmt.Println(out)
}

// contextViaHTTP fetches the rendered context window. window < 0 uses the server default.
func contextViaHTTP(serverURL, sessionID, text string, window int) (string, error) {
	q := url.Values{}
	q.Set("text", text)
	if window >= 0 {
		q.Set("window", strconv.Itoa(window))
	}
	u := fmt.Sprintf("%s/api/v1/sessions/%s/context?%s", serverURL, url.PathEscape(sessionID), q.Encode())
	resp, err := http.Get(u)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Context string `json:"context"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Context, nil
}

// joinArgs joins positional args so quoted and unquoted text behave the same.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the text to the front so flag.Parse sees
// them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`semcache - Semantic response cache for LLM conversations

Usage:
  semcache server [flags]            Start the HTTP server
  semcache run --data <file> [flags] Replay a conversation dataset with and without the cache
  semcache evaluate [flags]          Summarize per-setup JSONL logs or a record database
  semcache chat [flags] <text>       Send one user turn to a running server
  semcache context [flags] <text>    Show the context window a server would embed
  semcache version                   Show version
  semcache help                      Show this help

Server Flags:
  --config string    Config file path (default: ./config.yaml, then /usr/local/etc/semcache/config.yaml)
  --debug            Enable debug logging

Run Flags:
  --data string        Conversation dataset (JSON)
  --labels string      Semantic-duplicate labels (.csv or .xlsx)
  --results string     Output directory for <setup>.jsonl, summary.csv and config.yaml
  --thresholds string  Comma-separated thresholds, e.g. 0.8,0.82,0.9 (default from config)
  --sqlite             Also write records to the configured SQLite database
  --skip-baseline      Skip the no_cache setup
  --no-progress        Disable the progress bar
  --output string      text, json or csv (default: text)

Evaluate Flags:
  --dir string       Directory of JSONL logs (default: results dir from config)
  --db string        SQLite record database to evaluate instead
  --output string    text, json or csv (default: text)
  --watch            Re-evaluate when logs change

Chat / Context Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session id
  --window int       Context window size (context only; default from server config)
  --no-cache         Bypass the cache (chat only)

Examples:
  semcache server
  semcache run --data data/conversations.json --labels data/labels.csv --thresholds 0.82,0.9
  semcache evaluate --dir results --output csv
  semcache chat --session demo "how long do refunds take?"
  semcache context --session demo --window 1 "and for digital goods?"`)
}
