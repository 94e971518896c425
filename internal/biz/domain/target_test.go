package domain

import "testing"

func TestDefaultTarget(t *testing.T) {
	direct := DefaultTarget("wxid_friend")
	if direct.Category != CategoryRelationship {
		t.Errorf("direct contact category: got %s", direct.Category)
	}
	if direct.CapturePolicy != CaptureSummaryOnly {
		t.Errorf("default policy: got %s", direct.CapturePolicy)
	}
	if direct.ImportanceThreshold != DefaultImportanceThreshold {
		t.Errorf("default threshold: got %d", direct.ImportanceThreshold)
	}

	group := DefaultTarget("12345@chatroom")
	if group.Category != CategoryInfoGap {
		t.Errorf("group category: got %s", group.Category)
	}
}

func TestNormalizeClampsFields(t *testing.T) {
	cfg := &TargetConfig{
		Talker:              "wxid_x",
		Category:            "bogus",
		CapturePolicy:       "bogus",
		NoiseTolerance:      "bogus",
		ImportanceThreshold: 250,
		BucketOverride:      "99_Nope",
	}
	cfg.Normalize()

	if cfg.Category != CategoryRelationship {
		t.Errorf("category: got %s", cfg.Category)
	}
	if cfg.CapturePolicy != CaptureSummaryOnly {
		t.Errorf("policy: got %s", cfg.CapturePolicy)
	}
	if cfg.NoiseTolerance != NoiseToleranceMedium {
		t.Errorf("tolerance: got %s", cfg.NoiseTolerance)
	}
	if cfg.ImportanceThreshold != 100 {
		t.Errorf("threshold: got %d", cfg.ImportanceThreshold)
	}
	if cfg.BucketOverride != "" {
		t.Errorf("unknown bucket override should be cleared, got %s", cfg.BucketOverride)
	}
	if cfg.WatchedParticipants == nil || cfg.FocusTopics == nil {
		t.Error("slices must be non-nil after Normalize")
	}
}

func TestNormalizeZeroThreshold(t *testing.T) {
	cfg := &TargetConfig{Talker: "wxid_x"}
	cfg.Normalize()
	if cfg.ImportanceThreshold != DefaultImportanceThreshold {
		t.Errorf("got %d", cfg.ImportanceThreshold)
	}
}

func TestIsWatched(t *testing.T) {
	cfg := &TargetConfig{WatchedParticipants: []string{"wxid_a", "wxid_b"}}
	if !cfg.IsWatched("wxid_a") {
		t.Error("wxid_a should be watched")
	}
	if cfg.IsWatched("wxid_c") {
		t.Error("wxid_c should not be watched")
	}
	if cfg.IsWatched("") {
		t.Error("empty sender should never be watched")
	}
}

func TestCategoryBucket(t *testing.T) {
	cases := []struct {
		category Category
		override string
		want     string
	}{
		{CategoryRelationship, "", BucketConnections},
		{CategoryLearning, "", BucketGrowth},
		{CategoryInfoGap, "", BucketProductMind},
		{CategoryNotification, "", BucketInbox},
		{CategoryRelationship, BucketWealth, BucketWealth},
	}
	for _, c := range cases {
		cfg := &TargetConfig{Category: c.category, BucketOverride: c.override}
		if got := cfg.CategoryBucket(); got != c.want {
			t.Errorf("%s/%s: got %s, want %s", c.category, c.override, got, c.want)
		}
	}
}

func TestKnownBucket(t *testing.T) {
	if !KnownBucket(BucketInbox) {
		t.Error("inbox should be known")
	}
	if KnownBucket("50_Other") {
		t.Error("50_Other should be unknown")
	}
}
