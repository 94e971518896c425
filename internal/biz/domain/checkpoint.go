package domain

import "time"

// Checkpoint is the per-talker high-water mark up to which messages are
// known to be fully processed
type Checkpoint struct {
	Time time.Time
	Seq  int64
}

// IsZero reports whether no checkpoint has been recorded yet
func (c Checkpoint) IsZero() bool {
	return c.Time.IsZero()
}

// Behind reports whether the proposed (t, seq) pair is strictly ahead of the
// stored checkpoint. Checkpoints only ever move forward.
func (c Checkpoint) Behind(t time.Time, seq int64) bool {
	if t.IsZero() {
		return false
	}
	if c.Time.IsZero() {
		return true
	}
	if t.After(c.Time) {
		return true
	}
	return t.Equal(c.Time) && seq > c.Seq
}
