package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// decisionLogRepo implements the append-only evaluation trace
type decisionLogRepo struct {
	db *sql.DB
}

// NewDecisionLogRepo creates a sqlite-backed decision log
func NewDecisionLogRepo(dbPath string) (repo.DecisionLogRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS decision_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			talker TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			outcome TEXT NOT NULL,
			buckets TEXT NOT NULL DEFAULT '[]',
			importance INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			reason_tags TEXT NOT NULL DEFAULT '[]',
			evaluated_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create decision_log table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_decisions_talker ON decision_log(talker, id)`)

	return &decisionLogRepo{db: db}, nil
}

func (r *decisionLogRepo) Append(ctx context.Context, rec *domain.DecisionRecord) error {
	buckets, err := json.Marshal(rec.Buckets)
	if err != nil {
		return fmt.Errorf("failed to encode buckets: %w", err)
	}
	tags, err := json.Marshal(rec.ReasonTags)
	if err != nil {
		return fmt.Errorf("failed to encode reason tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decision_log (talker, idempotency_key, outcome, buckets, importance, confidence, reason_tags, evaluated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Talker, rec.IdempotencyKey, rec.Outcome, string(buckets), rec.Importance, rec.Confidence,
		string(tags), rec.EvaluatedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

func (r *decisionLogRepo) Recent(ctx context.Context, talker string, limit int) ([]*domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, talker, idempotency_key, outcome, buckets, importance, confidence, reason_tags, evaluated_at
		FROM decision_log
		WHERE talker = ?
		ORDER BY id DESC
		LIMIT ?
	`, talker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var buckets, tags string
		var evaluatedAt int64
		if err := rows.Scan(&rec.ID, &rec.Talker, &rec.IdempotencyKey, &rec.Outcome, &buckets,
			&rec.Importance, &rec.Confidence, &tags, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.EvaluatedAt = time.Unix(evaluatedAt, 0).UTC()
		_ = json.Unmarshal([]byte(buckets), &rec.Buckets)
		_ = json.Unmarshal([]byte(tags), &rec.ReasonTags)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *decisionLogRepo) Close() error {
	return r.db.Close()
}
