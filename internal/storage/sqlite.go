package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/semcache/internal/models"
)

// SQLiteStorage stores turn records in a SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS turn_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		setup TEXT NOT NULL,
		session_id TEXT NOT NULL,
		turn_index INTEGER NOT NULL,
		threshold REAL NOT NULL,
		cache_hit INTEGER NOT NULL,
		similarity REAL,
		latency_ms INTEGER NOT NULL,
		llm_called INTEGER NOT NULL,
		sem_duplicate_label INTEGER,
		embedding_model TEXT,
		generation_model TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_turn_records_setup ON turn_records(setup);
	CREATE INDEX IF NOT EXISTS idx_turn_records_run ON turn_records(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// WriteRecord inserts a record. CreatedAt is set when zero.
func (s *SQLiteStorage) WriteRecord(ctx context.Context, rec *models.TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var label sql.NullBool
	if rec.SemDuplicateLabel != nil {
		label = sql.NullBool{Bool: *rec.SemDuplicateLabel, Valid: true}
	}
	var sim sql.NullFloat64
	if rec.Similarity != nil {
		sim = sql.NullFloat64{Float64: *rec.Similarity, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turn_records (run_id, setup, session_id, turn_index, threshold, cache_hit,
			similarity, latency_ms, llm_called, sem_duplicate_label, embedding_model, generation_model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Setup, rec.SessionID, rec.TurnIndex, rec.Threshold, rec.CacheHit,
		sim, rec.LatencyMS, rec.LLMCalled, label, rec.EmbeddingModel, rec.GenerationModel, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn record: %w", err)
	}
	return nil
}

// ListRecords returns the records of a setup in insertion order. An empty setup lists all.
func (s *SQLiteStorage) ListRecords(ctx context.Context, setup string) ([]*models.TurnRecord, error) {
	query := `SELECT run_id, setup, session_id, turn_index, threshold, cache_hit, similarity,
		latency_ms, llm_called, sem_duplicate_label, embedding_model, generation_model, created_at
		FROM turn_records`
	var args []any
	if setup != "" {
		query += ` WHERE setup = ?`
		args = append(args, setup)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.TurnRecord
	for rows.Next() {
		var (
			rec   models.TurnRecord
			runID sql.NullString
			sim   sql.NullFloat64
			label sql.NullBool
		)
		if err := rows.Scan(&runID, &rec.Setup, &rec.SessionID, &rec.TurnIndex, &rec.Threshold,
			&rec.CacheHit, &sim, &rec.LatencyMS, &rec.LLMCalled, &label,
			&rec.EmbeddingModel, &rec.GenerationModel, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.RunID = runID.String
		if sim.Valid {
			v := sim.Float64
			rec.Similarity = &v
		}
		if label.Valid {
			v := label.Bool
			rec.SemDuplicateLabel = &v
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// ListSetups returns the distinct setup names in first-seen order.
func (s *SQLiteStorage) ListSetups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT setup FROM turn_records GROUP BY setup ORDER BY MIN(id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		setups = append(setups, name)
	}
	return setups, rows.Err()
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turn_records`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
