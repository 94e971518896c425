package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/usecase"
)

// BackfillScheduler is the correctness channel: it replays the interval since
// each talker's checkpoint through the shared pipeline and advances the
// checkpoint only on fully successful batches.
type BackfillScheduler struct {
	pipeline *usecase.Pipeline
	targets  repo.TargetRepo
	history  repo.HistoryRepo
	state    repo.StateRepo
	buffer   repo.BufferRepo
	health   *HealthState

	interval          time.Duration
	bootstrapWindows  []time.Duration
	deferredRetention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackfillScheduler creates the scheduler
func NewBackfillScheduler(
	pipeline *usecase.Pipeline,
	targets repo.TargetRepo,
	history repo.HistoryRepo,
	state repo.StateRepo,
	buffer repo.BufferRepo,
	health *HealthState,
	interval time.Duration,
	bootstrapWindows []time.Duration,
	deferredRetention time.Duration,
) *BackfillScheduler {
	if len(bootstrapWindows) == 0 {
		bootstrapWindows = []time.Duration{3 * 24 * time.Hour}
	}
	if deferredRetention <= 0 {
		deferredRetention = 7 * 24 * time.Hour
	}
	return &BackfillScheduler{
		pipeline:          pipeline,
		targets:           targets,
		history:           history,
		state:             state,
		buffer:            buffer,
		health:            health,
		interval:          interval,
		bootstrapWindows:  bootstrapWindows,
		deferredRetention: deferredRetention,
	}
}

// Start runs one backfill immediately, then on every interval tick. A cleanup
// loop prunes stale deferred cache entries every 6 hours.
func (s *BackfillScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.backfillLoop()
	go s.cleanupLoop()

	fmt.Printf("[Scheduler] Started with interval %v\n", s.interval)
}

// Stop signals shutdown and waits for in-flight batches to finish
func (s *BackfillScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	fmt.Println("[Scheduler] Stopped")
}

func (s *BackfillScheduler) backfillLoop() {
	defer s.wg.Done()

	s.RunOnce(s.ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

func (s *BackfillScheduler) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// RunOnce backfills every monitored talker and then flushes pending window
// aggregates. One talker's failure never blocks the others.
func (s *BackfillScheduler) RunOnce(ctx context.Context) {
	targets, err := s.targets.List(ctx)
	if err != nil {
		fmt.Printf("[Scheduler] Failed to list targets: %v\n", err)
		return
	}

	for _, target := range targets {
		if !target.Enabled {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.backfillTalker(ctx, target); err != nil {
			s.health.RecordFailure(target.Talker)
			fmt.Printf("[Scheduler] Backfill failed for %s: %v\n", target.Talker, err)
			continue
		}
		s.health.RecordSuccess(target.Talker, time.Now())
	}

	s.flushAggregates(ctx, targets)
}

// backfillTalker processes the window (checkpoint, now] for one talker.
// Without a checkpoint, the widening bootstrap ladder is tried until a
// window returns messages.
func (s *BackfillScheduler) backfillTalker(ctx context.Context, target *domain.TargetConfig) error {
	cp, err := s.state.LoadCheckpoint(ctx, target.Talker)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	now := time.Now()
	var msgs []*domain.Message
	if !cp.IsZero() {
		msgs, err = s.history.FetchHistory(ctx, target.Talker, cp.Time, now)
		if err != nil {
			return fmt.Errorf("fetch window: %w", err)
		}
	} else {
		for i, window := range s.bootstrapWindows {
			msgs, err = s.history.FetchHistory(ctx, target.Talker, now.Add(-window), now)
			if err != nil {
				return fmt.Errorf("fetch bootstrap window: %w", err)
			}
			if len(msgs) > 0 || i == len(s.bootstrapWindows)-1 {
				break
			}
		}
	}

	// Left-open window: the checkpointed instant itself is already done
	if !cp.IsZero() {
		filtered := msgs[:0]
		for _, m := range msgs {
			if m.Timestamp.After(cp.Time) || (m.Timestamp.Equal(cp.Time) && m.Seq > cp.Seq) {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}
	if len(msgs) == 0 {
		return nil
	}

	res := s.pipeline.ProcessWindow(ctx, target, msgs)
	if res.Failures > 0 {
		return fmt.Errorf("window aborted after %d processed, %d duplicates", res.Processed, res.Duplicates)
	}
	if err := s.state.AdvanceCheckpoint(ctx, target.Talker, res.MaxTime, res.MaxSeq); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	if res.Processed > 0 {
		fmt.Printf("[Scheduler] Backfilled %s: %d new, %d duplicates\n", target.Talker, res.Processed, res.Duplicates)
	}
	return nil
}

// flushAggregates folds deferred messages into digest notes for every talker
// with pending entries
func (s *BackfillScheduler) flushAggregates(ctx context.Context, targets []*domain.TargetConfig) {
	talkers, err := s.buffer.TalkersWithUnflushed(ctx)
	if err != nil {
		fmt.Printf("[Scheduler] Failed to list pending aggregates: %v\n", err)
		return
	}

	byTalker := make(map[string]*domain.TargetConfig, len(targets))
	for _, t := range targets {
		byTalker[t.Talker] = t
	}

	for _, talker := range talkers {
		target, ok := byTalker[talker]
		if !ok || !target.Enabled {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if _, err := s.pipeline.FlushAggregate(ctx, target); err != nil {
			fmt.Printf("[Scheduler] Aggregate flush failed for %s: %v\n", talker, err)
		}
	}
}

func (s *BackfillScheduler) cleanup() {
	count, err := s.buffer.CleanupOld(s.ctx, time.Now().Add(-s.deferredRetention))
	if err != nil {
		fmt.Printf("[Scheduler] Cleanup error: %v\n", err)
		return
	}
	if count > 0 {
		fmt.Printf("[Scheduler] Cleaned up %d old deferred messages\n", count)
	}
}
