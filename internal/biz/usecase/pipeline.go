package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
)

// TalkerCounters tracks per-talker processing totals for health reporting
type TalkerCounters struct {
	Processed    int64 // newly created processed records
	DedupSkipped int64 // deliveries skipped because the key was already handled
	Conflicts    int64 // duplicate keys with divergent timestamps
}

// Pipeline is the channel-agnostic processing path shared by the webhook
// intake and the backfill scheduler: dedup, policy, sink, mark-processed.
type Pipeline struct {
	state      repo.StateRepo
	buffer     repo.BufferRepo
	sink       repo.SinkRepo
	decisions  repo.DecisionLogRepo
	summarizer repo.SummarizerRepo // optional
	evaluator  *Evaluator

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	countersMu sync.Mutex
	counters   map[string]*TalkerCounters
}

// NewPipeline creates the processing pipeline. summarizer may be nil; the
// aggregate flush then falls back to deterministic digest formatting.
func NewPipeline(
	state repo.StateRepo,
	buffer repo.BufferRepo,
	sink repo.SinkRepo,
	decisions repo.DecisionLogRepo,
	summarizer repo.SummarizerRepo,
	evaluator *Evaluator,
) *Pipeline {
	return &Pipeline{
		state:      state,
		buffer:     buffer,
		sink:       sink,
		decisions:  decisions,
		summarizer: summarizer,
		evaluator:  evaluator,
		locks:      make(map[string]*sync.Mutex),
		counters:   make(map[string]*TalkerCounters),
	}
}

// lockTalker serializes pipeline work per talker so a slow webhook call and a
// concurrent backfill batch cannot interleave checkpoint writes
func (p *Pipeline) lockTalker(talker string) func() {
	p.locksMu.Lock()
	mu, ok := p.locks[talker]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[talker] = mu
	}
	p.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Counters returns a copy of the talker's processing totals
func (p *Pipeline) Counters(talker string) TalkerCounters {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	if c, ok := p.counters[talker]; ok {
		return *c
	}
	return TalkerCounters{}
}

func (p *Pipeline) bump(talker string, f func(*TalkerCounters)) {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	c, ok := p.counters[talker]
	if !ok {
		c = &TalkerCounters{}
		p.counters[talker] = c
	}
	f(c)
}

// ProcessOne handles a single webhook-delivered message. It reports whether a
// new processed record was created (false for duplicate deliveries). The
// webhook path never advances checkpoints; only completed backfill windows do.
func (p *Pipeline) ProcessOne(ctx context.Context, target *domain.TargetConfig, msg *domain.Message) (bool, error) {
	unlock := p.lockTalker(msg.Talker)
	defer unlock()
	return p.process(ctx, target, msg, nil)
}

// WindowResult reports the outcome of processing one backfill window
type WindowResult struct {
	Processed  int // newly created processed records
	Duplicates int // messages already handled via another channel
	Failures   int // messages that could not be processed; batch aborted
	MaxTime    time.Time
	MaxSeq     int64
}

// ProcessWindow runs a backfill batch through the pipeline in (timestamp,
// seq) ascending order. The batch aborts on the first failure so the caller
// retries the whole window next tick; the checkpoint may only be advanced
// when Failures is zero.
func (p *Pipeline) ProcessWindow(ctx context.Context, target *domain.TargetConfig, msgs []*domain.Message) WindowResult {
	unlock := p.lockTalker(target.Talker)
	defer unlock()

	sorted := make([]*domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	var res WindowResult
	for _, msg := range sorted {
		inserted, err := p.process(ctx, target, msg, sorted)
		if err != nil {
			fmt.Printf("[Pipeline] Processing failed for %s: %v\n", target.Talker, err)
			res.Failures++
			return res
		}
		if inserted {
			res.Processed++
		} else {
			res.Duplicates++
		}
		if (domain.Checkpoint{Time: res.MaxTime, Seq: res.MaxSeq}).Behind(msg.Timestamp, msg.Seq) {
			res.MaxTime = msg.Timestamp
			res.MaxSeq = msg.Seq
		}
	}
	return res
}

// process is the dedup -> policy -> sink -> mark-processed core. A message is
// only marked processed once its side effects (note write, deferred cache
// entry) are durable, so a failure here is always safe to replay.
func (p *Pipeline) process(ctx context.Context, target *domain.TargetConfig, msg *domain.Message, window []*domain.Message) (bool, error) {
	key := msg.IdempotencyKey()

	done, err := p.state.IsProcessed(ctx, msg.Talker, key)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if done {
		p.bump(msg.Talker, func(c *TalkerCounters) { c.DedupSkipped++ })
		return false, nil
	}

	dec := p.evaluator.Evaluate(target, msg, window)
	p.logDecision(ctx, msg, key, dec)

	switch dec.Outcome {
	case domain.OutcomeAccept:
		content := formatNoteBody(msg, dec)
		meta := repo.NoteMeta{
			Title:            noteTitle(msg),
			Type:             "note",
			Tags:             tagStrings(dec.ReasonTags),
			Source:           "chatlog:" + msg.Talker,
			Confidence:       dec.ConfidenceLabel(),
			SourceMessageIDs: []string{key},
		}
		for _, bucket := range dec.Buckets {
			if _, err := p.sink.WriteNote(ctx, bucket, content, meta); err != nil {
				return false, fmt.Errorf("sink write: %w", err)
			}
		}
	case domain.OutcomeDefer:
		err := p.buffer.Add(ctx, &domain.DeferredMessage{
			Talker:         msg.Talker,
			IdempotencyKey: key,
			SenderID:       msg.SenderID,
			SenderName:     msg.SenderName,
			Content:        msg.Content,
			MessageTime:    msg.Timestamp,
		})
		if err != nil {
			return false, fmt.Errorf("defer cache: %w", err)
		}
	}

	inserted, err := p.state.MarkProcessed(ctx, msg.Talker, key, msg.Timestamp)
	if errors.Is(err, repo.ErrProcessedConflict) {
		// Hash collision or corrupted retry; the original record wins
		fmt.Printf("[Pipeline] Duplicate key conflict for %s key=%s\n", msg.Talker, key)
		p.bump(msg.Talker, func(c *TalkerCounters) { c.Conflicts++ })
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	if inserted {
		p.bump(msg.Talker, func(c *TalkerCounters) { c.Processed++ })
	} else {
		p.bump(msg.Talker, func(c *TalkerCounters) { c.DedupSkipped++ })
	}
	return inserted, nil
}

// FlushAggregate folds the talker's cached deferred messages into one digest
// note carrying every source idempotency key. Entries stay cached until the
// sink write succeeds, so a failed flush retries next tick.
func (p *Pipeline) FlushAggregate(ctx context.Context, target *domain.TargetConfig) (bool, error) {
	unlock := p.lockTalker(target.Talker)
	defer unlock()

	entries, err := p.buffer.Unflushed(ctx, target.Talker)
	if err != nil {
		return false, fmt.Errorf("load deferred: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	lines := make([]string, 0, len(entries))
	ids := make([]string, 0, len(entries))
	entryIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", e.MessageTime.Format("01-02 15:04"), e.SenderLabel(), e.Content))
		ids = append(ids, e.IdempotencyKey)
		entryIDs = append(entryIDs, e.ID)
	}

	body := p.summarize(ctx, target.Talker, lines)
	meta := repo.NoteMeta{
		Title:            "chat-digest",
		Type:             "digest",
		Tags:             []string{"digest", string(target.Category)},
		Source:           "chatlog:" + target.Talker,
		Confidence:       "medium",
		SourceMessageIDs: ids,
	}
	if _, err := p.sink.WriteNote(ctx, target.CategoryBucket(), body, meta); err != nil {
		return false, fmt.Errorf("sink write: %w", err)
	}
	if err := p.buffer.MarkFlushed(ctx, entryIDs); err != nil {
		return false, fmt.Errorf("mark flushed: %w", err)
	}
	fmt.Printf("[Pipeline] Flushed digest for %s (%d messages)\n", target.Talker, len(entries))
	return true, nil
}

func (p *Pipeline) summarize(ctx context.Context, talker string, lines []string) string {
	if p.summarizer != nil {
		summary, err := p.summarizer.SummarizeWindow(ctx, talker, lines)
		if err == nil && strings.TrimSpace(summary) != "" {
			return summary
		}
		if err != nil {
			fmt.Printf("[Pipeline] Summarizer error for %s: %v, using fallback\n", talker, err)
		}
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Digest of %d messages:\n\n", len(lines)))
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *Pipeline) logDecision(ctx context.Context, msg *domain.Message, key string, dec domain.Decision) {
	if p.decisions == nil {
		return
	}
	rec := &domain.DecisionRecord{
		Talker:         msg.Talker,
		IdempotencyKey: key,
		Outcome:        dec.Outcome,
		Buckets:        dec.Buckets,
		Importance:     dec.Importance,
		Confidence:     dec.Confidence,
		ReasonTags:     dec.ReasonTags,
		EvaluatedAt:    msg.Timestamp,
	}
	if err := p.decisions.Append(ctx, rec); err != nil {
		fmt.Printf("[Pipeline] Failed to append decision record: %v\n", err)
	}
}

func formatNoteBody(msg *domain.Message, dec domain.Decision) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%s** at %s\n\n", msg.SenderLabel(), msg.Timestamp.Format("2006-01-02 15:04")))
	sb.WriteString(msg.Content)
	sb.WriteString(fmt.Sprintf("\n\nimportance: %d", dec.Importance))
	return sb.String()
}

func noteTitle(msg *domain.Message) string {
	title := strings.TrimSpace(msg.Content)
	if i := strings.IndexAny(title, "\r\n"); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if runes := []rune(title); len(runes) > 40 {
		title = string(runes[:40])
	}
	if title == "" {
		title = "capture"
	}
	return title
}

func tagStrings(tags []domain.ReasonTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
