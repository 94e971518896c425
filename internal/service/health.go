package service

import (
	"sync"
	"time"
)

// TalkerHealth is the per-talker health report exposed for alerting
type TalkerHealth struct {
	Enabled                     bool       `json:"enabled"`
	LastBackfillTime            *time.Time `json:"last_backfill_time,omitempty"`
	ConsecutiveBackfillFailures int        `json:"consecutive_backfill_failures"`
	DedupSkipRatio              float64    `json:"dedup_skip_ratio"`
	ProcessedCount              int64      `json:"processed_count"`
}

// HealthState tracks backfill outcomes per talker. Dedup ratios come from
// pipeline counters; this only owns scheduler-side state.
type HealthState struct {
	mu           sync.RWMutex
	lastBackfill map[string]time.Time
	failures     map[string]int
}

// NewHealthState creates an empty health tracker
func NewHealthState() *HealthState {
	return &HealthState{
		lastBackfill: make(map[string]time.Time),
		failures:     make(map[string]int),
	}
}

// RecordSuccess notes a completed backfill run and resets the failure streak
func (h *HealthState) RecordSuccess(talker string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBackfill[talker] = at
	h.failures[talker] = 0
}

// RecordFailure increments the talker's consecutive failure count
func (h *HealthState) RecordFailure(talker string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[talker]++
}

// LastBackfill returns the talker's last successful backfill time
func (h *HealthState) LastBackfill(talker string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.lastBackfill[talker]
	return t, ok
}

// Failures returns the talker's consecutive failure count
func (h *HealthState) Failures(talker string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failures[talker]
}
