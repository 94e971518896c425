package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// bufferRepo implements the deferred-message cache
type bufferRepo struct {
	db *sql.DB
}

// NewBufferRepo creates a sqlite-backed deferred-message cache
func NewBufferRepo(dbPath string) (repo.BufferRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deferred_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			talker TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			sender_id TEXT,
			sender_name TEXT,
			content TEXT NOT NULL,
			message_time INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			flushed INTEGER DEFAULT 0,
			flushed_at INTEGER,
			UNIQUE (talker, idempotency_key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create deferred_messages table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_deferred_talker_flushed ON deferred_messages(talker, flushed)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_deferred_created ON deferred_messages(created_at)`)

	fmt.Println("[Buffer] Database initialized")
	return &bufferRepo{db: db}, nil
}

func (r *bufferRepo) Add(ctx context.Context, msg *domain.DeferredMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO deferred_messages
			(talker, idempotency_key, sender_id, sender_name, content, message_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.Talker, msg.IdempotencyKey, msg.SenderID, msg.SenderName, msg.Content,
		msg.MessageTime.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add deferred message: %w", err)
	}
	return nil
}

func (r *bufferRepo) Unflushed(ctx context.Context, talker string) ([]*domain.DeferredMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, talker, idempotency_key, sender_id, sender_name, content, message_time, created_at, flushed
		FROM deferred_messages
		WHERE talker = ? AND flushed = 0
		ORDER BY message_time ASC, id ASC
	`, talker)
	if err != nil {
		return nil, fmt.Errorf("failed to load deferred messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeferredMessage
	for rows.Next() {
		var m domain.DeferredMessage
		var msgTime, createdAt int64
		if err := rows.Scan(&m.ID, &m.Talker, &m.IdempotencyKey, &m.SenderID, &m.SenderName,
			&m.Content, &msgTime, &createdAt, &m.Flushed); err != nil {
			return nil, fmt.Errorf("failed to scan deferred message: %w", err)
		}
		m.MessageTime = time.Unix(msgTime, 0).UTC()
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *bufferRepo) TalkersWithUnflushed(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT talker FROM deferred_messages WHERE flushed = 0 ORDER BY talker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list talkers with deferred messages: %w", err)
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

func (r *bufferRepo) MarkFlushed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().Unix())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE deferred_messages SET flushed = 1, flushed_at = ? WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark flushed: %w", err)
	}
	return nil
}

func (r *bufferRepo) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM deferred_messages WHERE created_at < ?
	`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup deferred messages: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (r *bufferRepo) Close() error {
	return r.db.Close()
}
