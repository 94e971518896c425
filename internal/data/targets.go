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

// targetRepo implements the per-talker policy config store
type targetRepo struct {
	db *sql.DB
}

// NewTargetRepo creates a sqlite-backed target store
func NewTargetRepo(dbPath string) (repo.TargetRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			talker TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			category TEXT NOT NULL,
			capture_policy TEXT NOT NULL,
			importance_threshold INTEGER NOT NULL,
			watched_participants TEXT NOT NULL DEFAULT '[]',
			focus_topics TEXT NOT NULL DEFAULT '[]',
			noise_tolerance TEXT NOT NULL DEFAULT 'medium',
			bucket_override TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create targets table: %w", err)
	}

	return &targetRepo{db: db}, nil
}

const targetColumns = `talker, enabled, category, capture_policy, importance_threshold,
	watched_participants, focus_topics, noise_tolerance, bucket_override`

func (r *targetRepo) List(ctx context.Context) ([]*domain.TargetConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+targetColumns+` FROM targets ORDER BY talker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.TargetConfig
	for rows.Next() {
		cfg, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (r *targetRepo) Get(ctx context.Context, talker string) (*domain.TargetConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+targetColumns+` FROM targets WHERE talker = ?
	`, talker)
	cfg, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *targetRepo) Upsert(ctx context.Context, cfg *domain.TargetConfig) (*domain.TargetConfig, error) {
	stored := *cfg
	stored.Normalize()

	watched, err := json.Marshal(stored.WatchedParticipants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode watched participants: %w", err)
	}
	topics, err := json.Marshal(stored.FocusTopics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode focus topics: %w", err)
	}

	now := time.Now().Unix()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO targets (talker, enabled, category, capture_policy, importance_threshold,
			watched_participants, focus_topics, noise_tolerance, bucket_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(talker) DO UPDATE SET
			enabled = excluded.enabled,
			category = excluded.category,
			capture_policy = excluded.capture_policy,
			importance_threshold = excluded.importance_threshold,
			watched_participants = excluded.watched_participants,
			focus_topics = excluded.focus_topics,
			noise_tolerance = excluded.noise_tolerance,
			bucket_override = excluded.bucket_override,
			updated_at = excluded.updated_at
	`, stored.Talker, stored.Enabled, stored.Category, stored.CapturePolicy, stored.ImportanceThreshold,
		string(watched), string(topics), stored.NoiseTolerance, stored.BucketOverride, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert target: %w", err)
	}
	return &stored, nil
}

func (r *targetRepo) Remove(ctx context.Context, talker string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM targets WHERE talker = ?`, talker)
	if err != nil {
		return false, fmt.Errorf("failed to remove target: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r *targetRepo) EnabledTalkers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT talker FROM targets WHERE enabled = 1 ORDER BY talker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled talkers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var talker string
		if err := rows.Scan(&talker); err != nil {
			return nil, fmt.Errorf("failed to scan talker: %w", err)
		}
		out = append(out, talker)
	}
	return out, rows.Err()
}

func (r *targetRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (*domain.TargetConfig, error) {
	var cfg domain.TargetConfig
	var watched, topics string
	err := row.Scan(&cfg.Talker, &cfg.Enabled, &cfg.Category, &cfg.CapturePolicy, &cfg.ImportanceThreshold,
		&watched, &topics, &cfg.NoiseTolerance, &cfg.BucketOverride)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan target: %w", err)
	}
	if err := json.Unmarshal([]byte(watched), &cfg.WatchedParticipants); err != nil {
		cfg.WatchedParticipants = []string{}
	}
	if err := json.Unmarshal([]byte(topics), &cfg.FocusTopics); err != nil {
		cfg.FocusTopics = []string{}
	}
	cfg.Normalize()
	return &cfg, nil
}
