package repo

import (
	"context"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// DecisionLogRepo is the append-only trace of policy evaluations
type DecisionLogRepo interface {
	Append(ctx context.Context, rec *domain.DecisionRecord) error
	Recent(ctx context.Context, talker string, limit int) ([]*domain.DecisionRecord, error)
	Close() error
}
