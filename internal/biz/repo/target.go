package repo

import (
	"context"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// TargetRepo stores the per-talker capture configuration
type TargetRepo interface {
	// List returns all targets ordered by talker
	List(ctx context.Context) ([]*domain.TargetConfig, error)

	// Get returns the target for a talker, nil when not configured
	Get(ctx context.Context, talker string) (*domain.TargetConfig, error)

	// Upsert stores a normalized copy of the config and returns it
	Upsert(ctx context.Context, cfg *domain.TargetConfig) (*domain.TargetConfig, error)

	// Remove deletes a target, reporting whether it existed
	Remove(ctx context.Context, talker string) (bool, error)

	// EnabledTalkers returns the talkers currently monitored
	EnabledTalkers(ctx context.Context) ([]string, error)

	Close() error
}
