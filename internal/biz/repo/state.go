package repo

import (
	"context"
	"errors"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// ErrProcessedConflict signals that an idempotency key was already recorded
// with a materially different message time. The original record wins; callers
// log the anomaly and move on.
var ErrProcessedConflict = errors.New("idempotency key already processed with a different timestamp")

// StateRepo is the durable idempotency and checkpoint store shared by the
// webhook and backfill channels
type StateRepo interface {
	// IsProcessed reports whether the key was already handled for the talker
	IsProcessed(ctx context.Context, talker, key string) (bool, error)

	// MarkProcessed records the key as handled. Returns false when the key was
	// already present (duplicate delivery). Returns ErrProcessedConflict when
	// the existing record carries a materially different message time.
	MarkProcessed(ctx context.Context, talker, key string, messageTime time.Time) (bool, error)

	// LoadCheckpoint returns the talker's high-water mark, zero when absent
	LoadCheckpoint(ctx context.Context, talker string) (domain.Checkpoint, error)

	// AdvanceCheckpoint moves the checkpoint forward. Proposals that are not
	// strictly ahead of the stored value are silently ignored.
	AdvanceCheckpoint(ctx context.Context, talker string, t time.Time, seq int64) error

	// ProcessedCount returns how many records exist for the talker
	ProcessedCount(ctx context.Context, talker string) (int64, error)

	Close() error
}
