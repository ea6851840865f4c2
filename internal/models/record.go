// Package models defines the request, record and summary types shared by the
// cache, the evaluation harness and the HTTP API.
package models

import "time"

// TurnRecord is the observable record of one handled user turn.
type TurnRecord struct {
	Setup             string    `json:"setup" db:"setup"`
	SessionID         string    `json:"sessionid" db:"session_id"`
	TurnIndex         int       `json:"trnindx" db:"turn_index"`
	Threshold         float64   `json:"threshold" db:"threshold"`
	CacheHit          bool      `json:"cache_hit" db:"cache_hit"`
	Similarity        *float64  `json:"similarity" db:"similarity"`
	LatencyMS         int64     `json:"latency_ms" db:"latency_ms"`
	LLMCalled         bool      `json:"llm_called" db:"llm_called"`
	SemDuplicateLabel *bool     `json:"semduplicatelabel" db:"sem_duplicate_label"`
	EmbeddingModel    string    `json:"embedding_model" db:"embedding_model"`
	GenerationModel   string    `json:"generation_model" db:"generation_model"`
	RunID             string    `json:"run_id,omitempty" db:"run_id"`
	CreatedAt         time.Time `json:"created_at,omitempty" db:"created_at"`
}

// Summary aggregates the records of one setup.
type Summary struct {
	Setup          string   `json:"setup"`
	N              int      `json:"n"`
	HitRate        float64  `json:"hit_rate"`
	CallsAvoided   int      `json:"calls_avoided"`
	P50LatencyMS   int64    `json:"p50_latency_ms"`
	P95LatencyMS   int64    `json:"p95_latency_ms"`
	MeanLatencyMS  float64  `json:"mean_latency_ms"`
	FalseReuseRate float64  `json:"false_reuse_rate"`
	Precision      *float64 `json:"precision"`
	Recall         *float64 `json:"recall"`
	F1             *float64 `json:"f1"`
	LogPath        string   `json:"log_path,omitempty"`
}
