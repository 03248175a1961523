// Package store archives aggregated results to SQLite for post-campaign
// review. The archive is wired as an integrator subscriber; the pipeline
// never depends on it and archive failures are logged, not propagated.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Store represents the SQLite archive implementation.
type Store struct {
	db *sql.DB
}

// VerdictRecord is one archived aggregated result.
type VerdictRecord struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Verdict   string    `json:"verdict"`
	RiskScore float64   `json:"risk_score"`
	Rationale string    `json:"rationale"`
	RawJSON   string    `json:"raw_json"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore creates a new SQLite archive instance.
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate performs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS verdicts (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			source TEXT NOT NULL,
			severity TEXT NOT NULL,
			verdict TEXT NOT NULL,
			risk_score REAL NOT NULL DEFAULT 0,
			rationale TEXT,
			raw_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_verdicts_source ON verdicts(source)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_verdict ON verdicts(verdict)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_created_at ON verdicts(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// SaveResult archives one aggregated result and returns the archive row id.
func (s *Store) SaveResult(ctx context.Context, res *signal.Result) (string, error) {
	if res == nil || res.Signal == nil || res.Signal.Event == nil {
		return "", fmt.Errorf("result is missing its signal or event")
	}

	raw, err := json.Marshal(res.Summary())
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (id, event_id, source, severity, verdict, risk_score, rationale, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		res.Signal.Event.ID,
		res.Signal.Event.Source,
		string(res.Signal.Severity),
		res.Verdict,
		signal.Round3(res.RiskScore),
		res.Rationale,
		string(raw),
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert verdict: %w", err)
	}
	return id, nil
}

// ListVerdicts returns the most recent archived verdicts, newest first.
func (s *Store) ListVerdicts(ctx context.Context, limit int) ([]VerdictRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, source, severity, verdict, risk_score, rationale, raw_json, created_at
		FROM verdicts ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var records []VerdictRecord
	for rows.Next() {
		var record VerdictRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.EventID, &record.Source, &record.Severity,
			&record.Verdict, &record.RiskScore, &record.Rationale, &record.RawJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountByVerdict returns the archived row count per verdict value.
func (s *Store) CountByVerdict(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT verdict, COUNT(*) FROM verdicts GROUP BY verdict`)
	if err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var verdict string
		var count int
		if err := rows.Scan(&verdict, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[verdict] = count
	}
	return counts, rows.Err()
}
