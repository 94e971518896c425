package domain

import (
	"errors"
	"strings"
)

// Category classifies why a talker is monitored
type Category string

const (
	CategoryRelationship Category = "relationship"
	CategoryNotification Category = "notification"
	CategoryLearning     Category = "learning"
	CategoryInfoGap      Category = "info_gap"
)

// CapturePolicy controls the granularity of what gets persisted
type CapturePolicy string

const (
	CaptureSummaryOnly CapturePolicy = "summary_only"
	CaptureKeyEvents   CapturePolicy = "key_events"
	CaptureHybrid      CapturePolicy = "hybrid"
)

// NoiseTolerance controls how aggressively trivial messages are discarded
type NoiseTolerance string

const (
	NoiseToleranceLow    NoiseTolerance = "low"
	NoiseToleranceMedium NoiseTolerance = "medium"
	NoiseToleranceHigh   NoiseTolerance = "high"
)

// Memory buckets (long-term note categories)
const (
	BucketInbox       = "00_Inbox"
	BucketGrowth      = "10_Growth"
	BucketConnections = "20_Connections"
	BucketWealth      = "30_Wealth"
	BucketProductMind = "40_ProductMind"
)

// Buckets lists all known memory buckets in layout order
var Buckets = []string{BucketInbox, BucketGrowth, BucketConnections, BucketWealth, BucketProductMind}

// ErrUnknownBucket is returned when a note targets a bucket outside the layout
var ErrUnknownBucket = errors.New("unknown memory bucket")

// KnownBucket reports whether name is one of the layout buckets
func KnownBucket(name string) bool {
	for _, b := range Buckets {
		if b == name {
			return true
		}
	}
	return false
}

// DefaultImportanceThreshold applies when a target does not set one
const DefaultImportanceThreshold = 60

// TargetConfig is the per-talker capture configuration. It is read-only to
// the pipeline; edits take effect on the next message evaluated.
type TargetConfig struct {
	Talker              string         `json:"talker"`
	Enabled             bool           `json:"enabled"`
	Category            Category       `json:"category"`
	CapturePolicy       CapturePolicy  `json:"capture_policy"`
	ImportanceThreshold int            `json:"importance_threshold"` // 0-100
	WatchedParticipants []string       `json:"watched_participants"`
	FocusTopics         []string       `json:"focus_topics"`
	NoiseTolerance      NoiseTolerance `json:"noise_tolerance"`
	BucketOverride      string         `json:"bucket_override,omitempty"`
}

// IsGroupTalker reports whether the talker identifier names a group chat
func IsGroupTalker(talker string) bool {
	return strings.HasSuffix(talker, "@chatroom")
}

// DefaultTarget returns the default configuration for a talker: groups start
// as info_gap feeds, direct contacts as relationships.
func DefaultTarget(talker string) *TargetConfig {
	cfg := &TargetConfig{
		Talker:              talker,
		Enabled:             true,
		Category:            CategoryRelationship,
		CapturePolicy:       CaptureSummaryOnly,
		ImportanceThreshold: DefaultImportanceThreshold,
		WatchedParticipants: []string{},
		FocusTopics:         []string{},
		NoiseTolerance:      NoiseToleranceMedium,
	}
	if IsGroupTalker(talker) {
		cfg.Category = CategoryInfoGap
	}
	return cfg
}

// Normalize clamps and defaults all fields so that a config read back from
// storage or an API payload is always valid
func (c *TargetConfig) Normalize() {
	switch c.Category {
	case CategoryRelationship, CategoryNotification, CategoryLearning, CategoryInfoGap:
	default:
		if IsGroupTalker(c.Talker) {
			c.Category = CategoryInfoGap
		} else {
			c.Category = CategoryRelationship
		}
	}
	switch c.CapturePolicy {
	case CaptureSummaryOnly, CaptureKeyEvents, CaptureHybrid:
	default:
		c.CapturePolicy = CaptureSummaryOnly
	}
	switch c.NoiseTolerance {
	case NoiseToleranceLow, NoiseToleranceMedium, NoiseToleranceHigh:
	default:
		c.NoiseTolerance = NoiseToleranceMedium
	}
	if c.ImportanceThreshold <= 0 {
		c.ImportanceThreshold = DefaultImportanceThreshold
	}
	if c.ImportanceThreshold > 100 {
		c.ImportanceThreshold = 100
	}
	if c.WatchedParticipants == nil {
		c.WatchedParticipants = []string{}
	}
	if c.FocusTopics == nil {
		c.FocusTopics = []string{}
	}
	if c.BucketOverride != "" && !KnownBucket(c.BucketOverride) {
		c.BucketOverride = ""
	}
}

// IsWatched reports whether the sender is a watched participant
func (c *TargetConfig) IsWatched(senderID string) bool {
	for _, p := range c.WatchedParticipants {
		if p != "" && p == senderID {
			return true
		}
	}
	return false
}

// CategoryBucket returns the long-term bucket derived from the category
func (c *TargetConfig) CategoryBucket() string {
	if c.BucketOverride != "" {
		return c.BucketOverride
	}
	switch c.Category {
	case CategoryLearning:
		return BucketGrowth
	case CategoryInfoGap:
		return BucketProductMind
	case CategoryNotification:
		return BucketInbox
	default:
		return BucketConnections
	}
}
