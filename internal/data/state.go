package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// stateRepo implements the idempotency and checkpoint store
type stateRepo struct {
	db *sql.DB
}

// NewStateRepo creates a sqlite-backed state store
func NewStateRepo(dbPath string) (repo.StateRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_messages (
			talker TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			message_time INTEGER,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (talker, idempotency_key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create processed_messages table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			talker TEXT PRIMARY KEY,
			last_processed_time INTEGER NOT NULL,
			last_processed_seq INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_processed_talker ON processed_messages(talker)`)

	fmt.Println("[State] Database initialized")
	return &stateRepo{db: db}, nil
}

func (r *stateRepo) IsProcessed(ctx context.Context, talker, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM processed_messages WHERE talker = ? AND idempotency_key = ?
	`, talker, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed is the check-then-act primitive: the unique insert failing is
// interpreted as "already processed", not as an error. A pre-existing record
// with a materially different message time surfaces ErrProcessedConflict.
func (r *stateRepo) MarkProcessed(ctx context.Context, talker, key string, messageTime time.Time) (bool, error) {
	var ts interface{}
	if !messageTime.IsZero() {
		ts = messageTime.Unix()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (talker, idempotency_key, message_time, created_at)
		VALUES (?, ?, ?, ?)
	`, talker, key, ts, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to mark processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var existing sql.NullInt64
	err = r.db.QueryRowContext(ctx, `
		SELECT message_time FROM processed_messages WHERE talker = ? AND idempotency_key = ?
	`, talker, key).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("failed to load existing record: %w", err)
	}
	if existing.Valid && !messageTime.IsZero() && existing.Int64 != messageTime.Unix() {
		return false, repo.ErrProcessedConflict
	}
	return false, nil
}

func (r *stateRepo) LoadCheckpoint(ctx context.Context, talker string) (domain.Checkpoint, error) {
	var t, seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_processed_time, last_processed_seq FROM checkpoints WHERE talker = ?
	`, talker).Scan(&t, &seq)
	if err == sql.ErrNoRows {
		return domain.Checkpoint{}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return domain.Checkpoint{Time: time.Unix(t, 0).UTC(), Seq: seq}, nil
}

// AdvanceCheckpoint only moves forward: the conditional upsert ignores
// proposals that are not strictly ahead of the stored (time, seq) pair
func (r *stateRepo) AdvanceCheckpoint(ctx context.Context, talker string, t time.Time, seq int64) error {
	if t.IsZero() {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (talker, last_processed_time, last_processed_seq, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(talker) DO UPDATE SET
			last_processed_time = excluded.last_processed_time,
			last_processed_seq = excluded.last_processed_seq,
			updated_at = excluded.updated_at
		WHERE excluded.last_processed_time > checkpoints.last_processed_time
		   OR (excluded.last_processed_time = checkpoints.last_processed_time
		       AND excluded.last_processed_seq > checkpoints.last_processed_seq)
	`, talker, t.Unix(), seq, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}

func (r *stateRepo) ProcessedCount(ctx context.Context, talker string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processed_messages WHERE talker = ?
	`, talker).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processed: %w", err)
	}
	return count, nil
}

func (r *stateRepo) Close() error {
	return r.db.Close()
}
