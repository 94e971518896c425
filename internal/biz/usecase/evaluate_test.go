package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

func testTarget(policy domain.CapturePolicy) *domain.TargetConfig {
	return &domain.TargetConfig{
		Talker:              "wxid_friend",
		Enabled:             true,
		Category:            domain.CategoryRelationship,
		CapturePolicy:       policy,
		ImportanceThreshold: 60,
		WatchedParticipants: []string{},
		FocusTopics:         []string{},
		NoiseTolerance:      domain.NoiseToleranceMedium,
	}
}

func textMsg(talker, sender, content string) *domain.Message {
	return &domain.Message{
		Talker:      talker,
		SenderID:    sender,
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ContentType: domain.ContentTypeText,
		Content:     content,
	}
}

func TestEvaluateScopeFilter(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	msg := textMsg("wxid_friend", "wxid_friend", "we decided to ship")

	if dec := e.Evaluate(nil, msg, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("nil target: got %s", dec.Outcome)
	}

	disabled := testTarget(domain.CaptureHybrid)
	disabled.Enabled = false
	if dec := e.Evaluate(disabled, msg, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("disabled target: got %s", dec.Outcome)
	}

	other := testTarget(domain.CaptureHybrid)
	other.Talker = "wxid_other"
	if dec := e.Evaluate(other, msg, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("mismatched talker: got %s", dec.Outcome)
	}
}

func TestEvaluateStructuralNoise(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureHybrid)

	system := textMsg("wxid_friend", "wxid_friend", "joined the group")
	system.ContentType = domain.ContentTypeSystem
	if dec := e.Evaluate(target, system, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("system event: got %s", dec.Outcome)
	}

	empty := textMsg("wxid_friend", "wxid_friend", "   ")
	if dec := e.Evaluate(target, empty, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("empty content: got %s", dec.Outcome)
	}

	trivial := textMsg("wxid_friend", "wxid_friend", "ok")
	if dec := e.Evaluate(target, trivial, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("trivial ack: got %s", dec.Outcome)
	}

	// High noise tolerance keeps trivial acknowledgements in play
	tolerant := testTarget(domain.CaptureHybrid)
	tolerant.NoiseTolerance = domain.NoiseToleranceHigh
	if dec := e.Evaluate(tolerant, trivial, nil); dec.Outcome == domain.OutcomeDrop {
		t.Error("high tolerance should not drop trivial acks")
	}
}

func TestEvaluateWindowRepeatCollapsed(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureHybrid)

	first := textMsg("wxid_friend", "wxid_a", "we decided to ship friday")
	repeat := textMsg("wxid_friend", "wxid_a", "we decided to ship friday")
	repeat.Timestamp = first.Timestamp.Add(time.Minute)
	window := []*domain.Message{first, repeat}

	if dec := e.Evaluate(target, repeat, window); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("exact repeat should drop, got %s", dec.Outcome)
	}
	if dec := e.Evaluate(target, first, window); dec.Outcome == domain.OutcomeDrop {
		t.Error("first occurrence should survive")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureHybrid)
	msg := textMsg("wxid_friend", "wxid_friend", "urgent: we decided you need to fix the blocker")

	first := e.Evaluate(target, msg, nil)
	for i := 0; i < 20; i++ {
		if next := e.Evaluate(target, msg, nil); !reflect.DeepEqual(first, next) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, first, next)
		}
	}
}

func TestEvaluateSummaryOnlyDefersIndividuals(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureSummaryOnly)

	// Even a maximally important message is deferred under summary_only
	msg := textMsg("wxid_friend", "wxid_friend", "urgent: we decided you need to fix the blocker asap")
	dec := e.Evaluate(target, msg, nil)
	if dec.Outcome != domain.OutcomeDefer {
		t.Errorf("summary_only must defer, got %s (importance %d)", dec.Outcome, dec.Importance)
	}
	if len(dec.Buckets) != 0 {
		t.Errorf("deferred decision must carry no buckets, got %v", dec.Buckets)
	}
}

func TestEvaluateKeyEventsGate(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureKeyEvents)
	target.WatchedParticipants = []string{"wxid_vip"}

	important := textMsg("wxid_friend", "wxid_x", "deadline risk: i'll fix the blocker, don't forget")
	if dec := e.Evaluate(target, important, nil); dec.Outcome != domain.OutcomeAccept {
		t.Errorf("above threshold: got %s (importance %d)", dec.Outcome, dec.Importance)
	}

	mundane := textMsg("wxid_friend", "wxid_x", "what a sunny day outside")
	if dec := e.Evaluate(target, mundane, nil); dec.Outcome != domain.OutcomeDrop {
		t.Errorf("below threshold unwatched: got %s", dec.Outcome)
	}

	// Watched senders below threshold fall back to defer, not drop
	target.ImportanceThreshold = 90
	fromVIP := textMsg("wxid_friend", "wxid_vip", "see you at the meetup")
	if dec := e.Evaluate(target, fromVIP, nil); dec.Outcome != domain.OutcomeDefer {
		t.Errorf("watched below threshold: got %s (importance %d)", dec.Outcome, dec.Importance)
	}
}

func TestEvaluateWatchedFloor(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureHybrid)
	target.WatchedParticipants = []string{"wxid_vip"}

	dec := e.Evaluate(target, textMsg("wxid_friend", "wxid_vip", "see you at the meetup"), nil)
	if dec.Importance < DefaultEvaluatorConfig.WatchedFloor {
		t.Errorf("watched sender scored %d, floor is %d", dec.Importance, DefaultEvaluatorConfig.WatchedFloor)
	}
	if !dec.HasTag(domain.TagRelationshipSignal) {
		t.Errorf("watched sender should carry relationship_signal, got %v", dec.ReasonTags)
	}
}

func TestEvaluateLowConfidenceDefers(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureKeyEvents)
	target.ImportanceThreshold = 40

	// Media content scores through keywords in the caption but its confidence
	// stays below the commit floor
	media := textMsg("wxid_friend", "wxid_x", "urgent deadline risk, we decided")
	media.ContentType = domain.ContentTypeMedia
	dec := e.Evaluate(target, media, nil)
	if dec.Outcome != domain.OutcomeDefer {
		t.Errorf("low-confidence accept must downgrade to defer, got %s (confidence %.2f)", dec.Outcome, dec.Confidence)
	}
}

func TestEvaluateBucketFanOut(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureHybrid)
	target.ImportanceThreshold = 50

	dec := e.Evaluate(target, textMsg("wxid_friend", "wxid_friend", "thanks for the docs on the tuning approach"), nil)
	if dec.Outcome != domain.OutcomeAccept {
		t.Fatalf("expected accept, got %s (importance %d)", dec.Outcome, dec.Importance)
	}
	if !containsBucket(dec.Buckets, domain.BucketConnections) {
		t.Errorf("relationship category should route to connections, got %v", dec.Buckets)
	}
	if !containsBucket(dec.Buckets, domain.BucketGrowth) {
		t.Errorf("knowledge tag should fan out to growth, got %v", dec.Buckets)
	}
	seen := map[string]int{}
	for _, b := range dec.Buckets {
		seen[b]++
		if seen[b] > 1 {
			t.Errorf("bucket %s listed twice: %v", b, dec.Buckets)
		}
	}
}

func TestEvaluateNotificationCutoff(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	target := testTarget(domain.CaptureKeyEvents)
	target.Category = domain.CategoryNotification

	// Scores above the threshold but below the high-priority cutoff stay
	// short-term only
	mid := textMsg("wxid_friend", "wxid_x", "deadline reminder: need to renew")
	dec := e.Evaluate(target, mid, nil)
	if dec.Importance >= DefaultEvaluatorConfig.HighPriorityCutoff {
		t.Fatalf("test message scored %d, wanted below cutoff", dec.Importance)
	}
	if dec.Outcome != domain.OutcomeDefer {
		t.Errorf("mid-priority notification: got %s", dec.Outcome)
	}

	hot := textMsg("wxid_friend", "wxid_x", "urgent: we decided you need to renew before the deadline, don't forget")
	dec = e.Evaluate(target, hot, nil)
	if dec.Importance < DefaultEvaluatorConfig.HighPriorityCutoff {
		t.Fatalf("test message scored %d, wanted at or above cutoff", dec.Importance)
	}
	if dec.Outcome != domain.OutcomeAccept || !containsBucket(dec.Buckets, domain.BucketInbox) {
		t.Errorf("high-priority notification: got %s %v", dec.Outcome, dec.Buckets)
	}
}

func TestEvaluateFocusTopicBoost(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig)
	plain := testTarget(domain.CaptureHybrid)
	focused := testTarget(domain.CaptureHybrid)
	focused.FocusTopics = []string{"kubernetes"}

	msg := textMsg("wxid_friend", "wxid_x", "the kubernetes upgrade is scheduled")
	base := e.Evaluate(plain, msg, nil)
	boosted := e.Evaluate(focused, msg, nil)
	if boosted.Importance <= base.Importance {
		t.Errorf("focus topic should raise score: %d vs %d", boosted.Importance, base.Importance)
	}
	if !boosted.HasTag(domain.TagKnowledge) {
		t.Errorf("focus match should tag knowledge, got %v", boosted.ReasonTags)
	}
}

func containsBucket(buckets []string, want string) bool {
	for _, b := range buckets {
		if b == want {
			return true
		}
	}
	return false
}
