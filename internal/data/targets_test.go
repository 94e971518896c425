package data

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
)

func newTestTargets(t *testing.T) repo.TargetRepo {
	t.Helper()
	r, err := NewTargetRepo(filepath.Join(t.TempDir(), "targets.db"))
	if err != nil {
		t.Fatalf("NewTargetRepo failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTargetUpsertAndGet(t *testing.T) {
	r := newTestTargets(t)
	ctx := context.Background()

	cfg := &domain.TargetConfig{
		Talker:              "wxid_friend",
		Enabled:             true,
		Category:            domain.CategoryLearning,
		CapturePolicy:       domain.CaptureKeyEvents,
		ImportanceThreshold: 75,
		WatchedParticipants: []string{"wxid_vip"},
		FocusTopics:         []string{"golang"},
		NoiseTolerance:      domain.NoiseToleranceLow,
	}
	if _, err := r.Upsert(ctx, cfg); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := r.Get(ctx, "wxid_friend")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored target")
	}
	if got.Category != domain.CategoryLearning || got.ImportanceThreshold != 75 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.WatchedParticipants, []string{"wxid_vip"}) {
		t.Errorf("watched participants: %v", got.WatchedParticipants)
	}
	if !reflect.DeepEqual(got.FocusTopics, []string{"golang"}) {
		t.Errorf("focus topics: %v", got.FocusTopics)
	}
}

func TestTargetGetMissing(t *testing.T) {
	r := newTestTargets(t)
	got, err := r.Get(context.Background(), "wxid_nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown talker, got %+v", got)
	}
}

func TestTargetUpsertNormalizes(t *testing.T) {
	r := newTestTargets(t)
	ctx := context.Background()

	stored, err := r.Upsert(ctx, &domain.TargetConfig{
		Talker:              "123@chatroom",
		Enabled:             true,
		ImportanceThreshold: 999,
		BucketOverride:      "bogus",
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if stored.Category != domain.CategoryInfoGap {
		t.Errorf("group default category: %s", stored.Category)
	}
	if stored.ImportanceThreshold != 100 {
		t.Errorf("threshold clamp: %d", stored.ImportanceThreshold)
	}
	if stored.BucketOverride != "" {
		t.Errorf("bogus override must be cleared: %s", stored.BucketOverride)
	}
}

func TestTargetUpsertOverwrites(t *testing.T) {
	r := newTestTargets(t)
	ctx := context.Background()

	first := domain.DefaultTarget("wxid_friend")
	if _, err := r.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}
	first.Enabled = false
	first.CapturePolicy = domain.CaptureHybrid
	if _, err := r.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}

	got, _ := r.Get(ctx, "wxid_friend")
	if got.Enabled || got.CapturePolicy != domain.CaptureHybrid {
		t.Errorf("second upsert not applied: %+v", got)
	}

	all, err := r.List(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("expected one row, got %d err=%v", len(all), err)
	}
}

func TestTargetRemoveAndEnabled(t *testing.T) {
	r := newTestTargets(t)
	ctx := context.Background()

	on := domain.DefaultTarget("wxid_on")
	off := domain.DefaultTarget("wxid_off")
	off.Enabled = false
	if _, err := r.Upsert(ctx, on); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Upsert(ctx, off); err != nil {
		t.Fatal(err)
	}

	enabled, err := r.EnabledTalkers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(enabled, []string{"wxid_on"}) {
		t.Errorf("enabled talkers: %v", enabled)
	}

	removed, err := r.Remove(ctx, "wxid_on")
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	removed, err = r.Remove(ctx, "wxid_on")
	if err != nil || removed {
		t.Errorf("second remove should report missing: removed=%v err=%v", removed, err)
	}
}
