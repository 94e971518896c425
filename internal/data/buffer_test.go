package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
)

func newTestBuffer(t *testing.T) repo.BufferRepo {
	t.Helper()
	r, err := NewBufferRepo(filepath.Join(t.TempDir(), "buffer.db"))
	if err != nil {
		t.Fatalf("NewBufferRepo failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func deferred(talker, key string, at time.Time) *domain.DeferredMessage {
	return &domain.DeferredMessage{
		Talker:         talker,
		IdempotencyKey: key,
		SenderID:       "wxid_s",
		SenderName:     "Sender",
		Content:        "content " + key,
		MessageTime:    at,
	}
}

func TestBufferAddIsIdempotent(t *testing.T) {
	r := newTestBuffer(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := r.Add(ctx, deferred("wxid_a", "k1", at)); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ctx, deferred("wxid_a", "k1", at)); err != nil {
		t.Fatal(err)
	}

	pending, err := r.Unflushed(ctx, "wxid_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("re-add must be a no-op, got %d entries", len(pending))
	}
}

func TestBufferUnflushedOrdering(t *testing.T) {
	r := newTestBuffer(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Insert out of order, read back by message time
	if err := r.Add(ctx, deferred("wxid_a", "late", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ctx, deferred("wxid_a", "early", base)); err != nil {
		t.Fatal(err)
	}

	pending, err := r.Unflushed(ctx, "wxid_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].IdempotencyKey != "early" || pending[1].IdempotencyKey != "late" {
		t.Errorf("ordering: %v", keysOf(pending))
	}
}

func TestBufferFlushLifecycle(t *testing.T) {
	r := newTestBuffer(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := r.Add(ctx, deferred("wxid_a", "k1", at)); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ctx, deferred("wxid_b", "k2", at)); err != nil {
		t.Fatal(err)
	}

	talkers, err := r.TalkersWithUnflushed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(talkers) != 2 {
		t.Fatalf("talkers with pending: %v", talkers)
	}

	pending, _ := r.Unflushed(ctx, "wxid_a")
	if err := r.MarkFlushed(ctx, []int64{pending[0].ID}); err != nil {
		t.Fatal(err)
	}

	pending, _ = r.Unflushed(ctx, "wxid_a")
	if len(pending) != 0 {
		t.Errorf("wxid_a should be drained, got %d", len(pending))
	}
	talkers, _ = r.TalkersWithUnflushed(ctx)
	if len(talkers) != 1 || talkers[0] != "wxid_b" {
		t.Errorf("remaining talkers: %v", talkers)
	}

	if err := r.MarkFlushed(ctx, nil); err != nil {
		t.Errorf("empty flush should be a no-op: %v", err)
	}
}

func TestBufferCleanupOld(t *testing.T) {
	r := newTestBuffer(t)
	ctx := context.Background()

	if err := r.Add(ctx, deferred("wxid_a", "k1", time.Now())); err != nil {
		t.Fatal(err)
	}

	// Cutoff in the past keeps the fresh entry
	n, err := r.CleanupOld(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 0 {
		t.Errorf("past cutoff: n=%d err=%v", n, err)
	}

	// Cutoff in the future removes it
	n, err = r.CleanupOld(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("future cutoff: n=%d err=%v", n, err)
	}
	if pending, _ := r.Unflushed(ctx, "wxid_a"); len(pending) != 0 {
		t.Errorf("entry should be gone, got %d", len(pending))
	}
}

func keysOf(msgs []*domain.DeferredMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.IdempotencyKey
	}
	return out
}
