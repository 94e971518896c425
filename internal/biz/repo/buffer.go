package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// BufferRepo is the short-term cache for policy-deferred messages awaiting
// aggregation into a window digest note
type BufferRepo interface {
	// Add caches a deferred message. Re-adding the same idempotency key for a
	// talker is a no-op.
	Add(ctx context.Context, msg *domain.DeferredMessage) error

	// Unflushed returns the talker's cached messages not yet aggregated,
	// ordered by message time
	Unflushed(ctx context.Context, talker string) ([]*domain.DeferredMessage, error)

	// TalkersWithUnflushed lists talkers that have pending cached messages
	TalkersWithUnflushed(ctx context.Context) ([]string, error)

	// MarkFlushed records that the entries were folded into an aggregate note
	MarkFlushed(ctx context.Context, ids []int64) error

	// CleanupOld removes flushed or stale entries created before the cutoff
	CleanupOld(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
