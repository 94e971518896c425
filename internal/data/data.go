package data

import (
	"path/filepath"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/chatlog"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/llm"
)

// Repositories contains all repositories
type Repositories struct {
	State      repo.StateRepo
	Targets    repo.TargetRepo
	Buffer     repo.BufferRepo
	Decisions  repo.DecisionLogRepo
	History    repo.HistoryRepo
	Sink       repo.SinkRepo
	Summarizer repo.SummarizerRepo
}

// NewRepositories creates all repositories. The sqlite stores share dataDir;
// notes are written under memoryRoot. llmClient may be nil.
func NewRepositories(dataDir, memoryRoot string, chatlogClient *chatlog.Client, llmClient *llm.Client) (*Repositories, error) {
	stateRepo, err := NewStateRepo(filepath.Join(dataDir, "state.db"))
	if err != nil {
		return nil, err
	}
	targetRepo, err := NewTargetRepo(filepath.Join(dataDir, "targets.db"))
	if err != nil {
		stateRepo.Close()
		return nil, err
	}
	bufferRepo, err := NewBufferRepo(filepath.Join(dataDir, "buffer.db"))
	if err != nil {
		stateRepo.Close()
		targetRepo.Close()
		return nil, err
	}
	decisionRepo, err := NewDecisionLogRepo(filepath.Join(dataDir, "decisions.db"))
	if err != nil {
		stateRepo.Close()
		targetRepo.Close()
		bufferRepo.Close()
		return nil, err
	}
	sinkRepo, err := NewNoteRepo(memoryRoot)
	if err != nil {
		stateRepo.Close()
		targetRepo.Close()
		bufferRepo.Close()
		decisionRepo.Close()
		return nil, err
	}

	return &Repositories{
		State:      stateRepo,
		Targets:    targetRepo,
		Buffer:     bufferRepo,
		Decisions:  decisionRepo,
		History:    NewChatlogRepo(chatlogClient),
		Sink:       sinkRepo,
		Summarizer: NewSummarizerRepo(llmClient),
	}, nil
}

// Close releases all repository resources
func (r *Repositories) Close() {
	if r.State != nil {
		r.State.Close()
	}
	if r.Targets != nil {
		r.Targets.Close()
	}
	if r.Buffer != nil {
		r.Buffer.Close()
	}
	if r.Decisions != nil {
		r.Decisions.Close()
	}
}
