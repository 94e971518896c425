package data

import (
	"context"
	"fmt"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/chatlog"
)

// chatlogRepo implements HistoryRepo over the gateway client
type chatlogRepo struct {
	client *chatlog.Client
}

// NewChatlogRepo creates the gateway-backed history repository
func NewChatlogRepo(client *chatlog.Client) repo.HistoryRepo {
	return &chatlogRepo{client: client}
}

func (r *chatlogRepo) FetchHistory(ctx context.Context, talker string, since, until time.Time) ([]*domain.Message, error) {
	raws, err := r.client.GetHistory(ctx, talker, since, until)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", talker, err)
	}

	out := make([]*domain.Message, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		rawTalker := raw.Talker
		if rawTalker == "" {
			rawTalker = talker
		}
		ts, err := domain.ParseMessageTime(raw.Time)
		if err != nil {
			skipped++
			continue
		}
		msg, err := domain.NormalizeMessage(rawTalker, raw.Sender, raw.SenderName, raw.IsSelf, raw.Seq, ts, raw.Type, raw.Content)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, msg)
	}
	if skipped > 0 {
		fmt.Printf("[Chatlog] Skipped %d malformed entries for %s\n", skipped, talker)
	}
	return out, nil
}
