package domain

import "time"

// Outcome is the result of evaluating one message against a target policy
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeDefer  Outcome = "defer"
	OutcomeDrop   Outcome = "drop"
)

// ReasonTag labels why a message scored the way it did
type ReasonTag string

const (
	TagTodo               ReasonTag = "todo"
	TagCommitment         ReasonTag = "commitment"
	TagRisk               ReasonTag = "risk"
	TagDecision           ReasonTag = "decision"
	TagRelationshipSignal ReasonTag = "relationship_signal"
	TagKnowledge          ReasonTag = "knowledge"
	TagNoise              ReasonTag = "noise"
)

// Decision is the policy evaluator's verdict for one message
type Decision struct {
	Outcome    Outcome
	Buckets    []string // target buckets, only populated on accept
	Importance int      // 0-100
	Confidence float64  // 0.0-1.0
	ReasonTags []ReasonTag
}

// HasTag reports whether the decision carries the given reason tag
func (d *Decision) HasTag(tag ReasonTag) bool {
	for _, t := range d.ReasonTags {
		if t == tag {
			return true
		}
	}
	return false
}

// ConfidenceLabel buckets the numeric confidence for note frontmatter
func (d *Decision) ConfidenceLabel() string {
	switch {
	case d.Confidence >= 0.75:
		return "high"
	case d.Confidence >= 0.45:
		return "medium"
	default:
		return "low"
	}
}

// DecisionRecord is one append-only entry in the evaluation trace log
type DecisionRecord struct {
	ID             int64
	Talker         string
	IdempotencyKey string
	Outcome        Outcome
	Buckets        []string
	Importance     int
	Confidence     float64
	ReasonTags     []ReasonTag
	EvaluatedAt    time.Time
}

// DeferredMessage is a policy-deferred message cached short-term until it is
// folded into a window aggregate note
type DeferredMessage struct {
	ID             int64
	Talker         string
	IdempotencyKey string
	SenderID       string
	SenderName     string
	Content        string
	MessageTime    time.Time
	CreatedAt      time.Time
	Flushed        bool
}

// SenderLabel returns a display name for the deferred message's sender
func (m *DeferredMessage) SenderLabel() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderID
}
