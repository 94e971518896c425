package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// HistoryRepo fetches message history from the chatlog gateway.
// Fetches in real-time from the gateway API, does not rely on local storage.
type HistoryRepo interface {
	// FetchHistory returns the talker's messages in [since, until], already
	// normalized. Malformed entries are skipped, not surfaced as errors.
	FetchHistory(ctx context.Context, talker string, since, until time.Time) ([]*domain.Message, error)
}
