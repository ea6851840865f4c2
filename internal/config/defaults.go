package config

import "time"

// DefaultThreshold is the minimum cosine similarity for reuse.
const DefaultThreshold = 0.82

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/semcache/data/records.db"
	}
	if cfg.Storage.ResultsDir == "" {
		cfg.Storage.ResultsDir = "/usr/local/var/semcache/results"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.APIKeyEnv == "" && cfg.Embedding.Provider != "ollama" {
		cfg.Embedding.APIKeyEnv = apiKeyEnv(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxFailures == 0 {
		cfg.Embedding.MaxFailures = 5
	}
	if cfg.Embedding.BreakerTimeout == 0 {
		cfg.Embedding.BreakerTimeout = 30 * time.Second
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "gemini"
	}
	if cfg.Generation.APIKeyEnv == "" && cfg.Generation.Provider != "ollama" {
		cfg.Generation.APIKeyEnv = apiKeyEnv(cfg.Generation.Provider)
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}

	if cfg.Cache.Threshold == nil {
		t := DefaultThreshold
		cfg.Cache.Threshold = &t
	}
	if cfg.Cache.TopK == 0 {
		cfg.Cache.TopK = 5
	}
	if cfg.Cache.IndexType == "" {
		cfg.Cache.IndexType = "memory"
	}
	if cfg.Cache.SystemHash == "" {
		cfg.Cache.SystemHash = "default_v1"
	}
	if cfg.Session.WindowK == 0 {
		cfg.Session.WindowK = 2
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
