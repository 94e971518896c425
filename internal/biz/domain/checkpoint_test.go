package domain

import (
	"testing"
	"time"
)

func TestCheckpointBehind(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cp := Checkpoint{Time: base, Seq: 100}

	cases := []struct {
		name string
		t    time.Time
		seq  int64
		want bool
	}{
		{"later time", base.Add(time.Second), 1, true},
		{"same time higher seq", base, 101, true},
		{"same time same seq", base, 100, false},
		{"same time lower seq", base, 99, false},
		{"earlier time", base.Add(-time.Second), 200, false},
		{"zero proposal", time.Time{}, 500, false},
	}
	for _, c := range cases {
		if got := cp.Behind(c.t, c.seq); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCheckpointZeroAlwaysBehind(t *testing.T) {
	var cp Checkpoint
	if !cp.IsZero() {
		t.Fatal("fresh checkpoint should be zero")
	}
	if !cp.Behind(time.Now(), 0) {
		t.Error("zero checkpoint must be behind any real instant")
	}
}
