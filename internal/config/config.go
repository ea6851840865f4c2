// Package config provides configuration loading and structs for the semcache server and harness.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given and ./config.yaml does not exist.
const DefaultPath = "/usr/local/etc/semcache/config.yaml"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Session    SessionConfig    `yaml:"session"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds where evaluation records are written.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ResultsDir   string `yaml:"results_dir"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cache_size"`
	RateLimit      float64       `yaml:"rate_limit"`
	MaxFailures    int           `yaml:"max_failures"`
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`

	// Local ONNX model settings.
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// GenerationConfig selects the generation backend.
type GenerationConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
}

// CacheConfig holds the reuse policy and index settings.
type CacheConfig struct {
	// Threshold is a pointer so an explicit 0 is distinguishable from unset.
	Threshold        *float64 `yaml:"threshold"`
	TopK             int      `yaml:"top_k"`
	IndexType        string   `yaml:"index_type"`
	SystemHash       string   `yaml:"system_hash"`
	MissOnEmbedError bool     `yaml:"miss_on_embed_error"`
}

// ThresholdOrDefault returns the configured threshold, or 0.82 when unset.
func (c *CacheConfig) ThresholdOrDefault() float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return DefaultThreshold
}

// SessionConfig holds context-window settings.
type SessionConfig struct {
	WindowK int `yaml:"window_k"`
}

// TracingConfig toggles OpenTelemetry span export to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ResultsDir = expandPath(cfg.Storage.ResultsDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Resolve picks the config file to load: the explicit path if given, else ./config.yaml
// when it exists, else DefaultPath.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		if abs, err := filepath.Abs("config.yaml"); err == nil {
			return abs
		}
		return "config.yaml"
	}
	return DefaultPath
}

// Default returns a configuration with every default applied, for running without a file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Validate rejects settings the cache cannot run with.
func (c *Config) Validate() error {
	if t := c.Cache.ThresholdOrDefault(); t < 0 || t > 1 {
		return fmt.Errorf("cache.threshold must be within [0, 1], got %v", t)
	}
	if c.Cache.TopK < 0 {
		return fmt.Errorf("cache.top_k must not be negative, got %d", c.Cache.TopK)
	}
	if c.Session.WindowK < 0 {
		return fmt.Errorf("session.window_k must not be negative, got %d", c.Session.WindowK)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
