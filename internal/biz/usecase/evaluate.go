package usecase

import (
	"sort"
	"strings"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
)

// EvaluatorConfig holds the capture tuning knobs
type EvaluatorConfig struct {
	WatchedFloor       int     // minimum score for watched participants
	HighPriorityCutoff int     // notification messages below this never reach the inbox
	MinConfidence      float64 // evaluations below this are forced to defer
}

// DefaultEvaluatorConfig are the tuning values used when no capture config
// file is provided
var DefaultEvaluatorConfig = EvaluatorConfig{
	WatchedFloor:       70,
	HighPriorityCutoff: 85,
	MinConfidence:      0.3,
}

// Evaluator is the pure policy function mapping (target config, message,
// recent window) to a Decision. Identical inputs always yield an identical
// Decision.
type Evaluator struct {
	cfg EvaluatorConfig
}

// NewEvaluator creates an evaluator with the given tuning
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// tagWeights maps each reason tag to its score contribution
var tagWeights = map[domain.ReasonTag]int{
	domain.TagTodo:               25,
	domain.TagCommitment:         30,
	domain.TagRisk:               30,
	domain.TagDecision:           30,
	domain.TagRelationshipSignal: 20,
	domain.TagKnowledge:          20,
}

// tagKeywords drive the content heuristics. Matching is case-insensitive
// substring search over the message content.
var tagKeywords = map[domain.ReasonTag][]string{
	domain.TagTodo:               {"todo", "to-do", "need to", "don't forget", "remember to", "待办", "记得"},
	domain.TagCommitment:         {"i will", "i'll", "we will", "promise", "deadline", "by tomorrow", "by friday", "我会", "保证"},
	domain.TagRisk:               {"risk", "blocker", "blocked", "urgent", "asap", "problem", "broken", "风险", "紧急"},
	domain.TagDecision:           {"decide", "decided", "decision", "agreed", "let's go with", "final call", "决定", "定了"},
	domain.TagKnowledge:          {"how to", "because", "the reason", "docs", "http://", "https://", "tutorial", "原理", "文档"},
	domain.TagRelationshipSignal: {"birthday", "congrat", "thank", "thanks", "sorry", "wedding", "恭喜", "谢谢", "生日"},
}

// trivialContent are throwaway acknowledgements collapsed as noise unless the
// target tolerates them
var trivialContent = map[string]bool{
	"ok": true, "okay": true, "ack": true, "+1": true,
	"好的": true, "好": true, "嗯": true, "嗯嗯": true, "哈哈": true, "收到": true,
}

// Evaluate runs the policy algorithm: scope filter, structural filter,
// importance classification, capture-policy gate, then bucket selection.
func (e *Evaluator) Evaluate(target *domain.TargetConfig, msg *domain.Message, window []*domain.Message) domain.Decision {
	// Scope filter: unmonitored talkers produce nothing
	if target == nil || !target.Enabled || target.Talker != msg.Talker {
		return domain.Decision{
			Outcome:    domain.OutcomeDrop,
			Confidence: 1.0,
			ReasonTags: []domain.ReasonTag{domain.TagNoise},
		}
	}

	// Structural filter: system events, empty payloads, window-local repeats
	if structuralNoise(target, msg, window) {
		return domain.Decision{
			Outcome:    domain.OutcomeDrop,
			Confidence: 1.0,
			ReasonTags: []domain.ReasonTag{domain.TagNoise},
		}
	}

	score, tags, confidence := e.classify(target, msg)

	outcome := e.captureGate(target, msg, score)
	if outcome == domain.OutcomeAccept && confidence < e.cfg.MinConfidence {
		// Low-confidence judgments never commit to long-term storage
		outcome = domain.OutcomeDefer
	}

	dec := domain.Decision{
		Outcome:    outcome,
		Importance: score,
		Confidence: confidence,
		ReasonTags: tags,
	}
	if outcome == domain.OutcomeAccept {
		dec.Buckets = e.selectBuckets(target, msg, score, tags)
		if len(dec.Buckets) == 0 {
			// Notification traffic below the high-priority cutoff stays
			// short-term only
			dec.Outcome = domain.OutcomeDefer
		}
	}
	return dec
}

func structuralNoise(target *domain.TargetConfig, msg *domain.Message, window []*domain.Message) bool {
	if msg.ContentType == domain.ContentTypeSystem {
		return true
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return true
	}
	if target.NoiseTolerance != domain.NoiseToleranceHigh && trivialContent[strings.ToLower(content)] {
		return true
	}
	// Collapse exact repeats from the same sender earlier in the window
	for _, prev := range window {
		if prev == msg {
			continue
		}
		if prev.SenderID == msg.SenderID && prev.Content == msg.Content && prev.Timestamp.Before(msg.Timestamp) {
			return true
		}
	}
	return false
}

// classify computes the importance score, reason tags, and confidence from
// content heuristics and watched-participant membership
func (e *Evaluator) classify(target *domain.TargetConfig, msg *domain.Message) (int, []domain.ReasonTag, float64) {
	content := strings.ToLower(msg.Content)
	score := 15
	var tags []domain.ReasonTag

	for tag, words := range tagKeywords {
		for _, w := range words {
			if strings.Contains(content, w) {
				tags = append(tags, tag)
				score += tagWeights[tag]
				break
			}
		}
	}

	for _, topic := range target.FocusTopics {
		if topic != "" && strings.Contains(content, strings.ToLower(topic)) {
			if !containsTag(tags, domain.TagKnowledge) {
				tags = append(tags, domain.TagKnowledge)
			}
			score += 15
			break
		}
	}

	watched := target.IsWatched(msg.SenderID)
	if watched {
		if !containsTag(tags, domain.TagRelationshipSignal) {
			tags = append(tags, domain.TagRelationshipSignal)
		}
		if score < e.cfg.WatchedFloor {
			score = e.cfg.WatchedFloor
		}
	}

	if score > 100 {
		score = 100
	}
	if len(tags) == 0 {
		tags = append(tags, domain.TagNoise)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	confidence := 0.35
	if n := len(tags); !containsTag(tags, domain.TagNoise) {
		confidence = 0.4 + 0.15*float64(n)
		if confidence > 0.95 {
			confidence = 0.95
		}
	}
	if watched && confidence < 0.7 {
		confidence = 0.7
	}
	if msg.ContentType == domain.ContentTypeMedia {
		// Media captions carry little signal on their own
		confidence = 0.25
	}
	return score, tags, confidence
}

// captureGate applies the configured capture policy after scoring
func (e *Evaluator) captureGate(target *domain.TargetConfig, msg *domain.Message, score int) domain.Outcome {
	watched := target.IsWatched(msg.SenderID)
	switch target.CapturePolicy {
	case domain.CaptureSummaryOnly:
		// Individual raw messages are never sunk standalone; only window
		// aggregates are accepted, and those are built outside Evaluate
		return domain.OutcomeDefer
	case domain.CaptureKeyEvents:
		if score >= target.ImportanceThreshold {
			return domain.OutcomeAccept
		}
		if watched {
			return domain.OutcomeDefer
		}
		return domain.OutcomeDrop
	default: // hybrid
		if watched || score >= target.ImportanceThreshold {
			return domain.OutcomeAccept
		}
		return domain.OutcomeDefer
	}
}

// selectBuckets derives the target buckets: explicit override, else category
// mapping, plus fan-out for tags that qualify additional buckets
func (e *Evaluator) selectBuckets(target *domain.TargetConfig, msg *domain.Message, score int, tags []domain.ReasonTag) []string {
	var buckets []string
	watched := target.IsWatched(msg.SenderID)

	if target.BucketOverride != "" {
		buckets = append(buckets, target.BucketOverride)
	} else {
		switch target.Category {
		case domain.CategoryRelationship:
			buckets = append(buckets, domain.BucketConnections)
		case domain.CategoryLearning:
			buckets = append(buckets, domain.BucketGrowth)
		case domain.CategoryInfoGap:
			buckets = append(buckets, domain.BucketProductMind)
			if watched {
				buckets = append(buckets, domain.BucketConnections)
			}
		case domain.CategoryNotification:
			if score >= e.cfg.HighPriorityCutoff {
				buckets = append(buckets, domain.BucketInbox)
			}
		}
	}

	// Fan-out: every qualifying tag gets its bucket, not an exclusive choice
	if len(buckets) > 0 {
		if containsTag(tags, domain.TagRelationshipSignal) {
			buckets = append(buckets, domain.BucketConnections)
		}
		if containsTag(tags, domain.TagKnowledge) {
			buckets = append(buckets, domain.BucketGrowth)
		}
	}
	return dedupBuckets(buckets)
}

func containsTag(tags []domain.ReasonTag, tag domain.ReasonTag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func dedupBuckets(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, b := range in {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
