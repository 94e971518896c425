package data

import (
	"context"
	"strings"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/llm"
)

const summaryPrompt = `You summarize chat windows into concise memory notes.
Given raw chat lines, produce a short digest covering: key topics, decisions,
commitments, and anything worth remembering about the participants.
Keep it under 200 words. Output plain markdown, no preamble.`

// llmSummarizer adapts the LLM client to the summarizer repository
type llmSummarizer struct {
	client *llm.Client
}

// NewSummarizerRepo wraps the LLM client; returns nil when the client is not
// configured so callers fall back to deterministic formatting
func NewSummarizerRepo(client *llm.Client) repo.SummarizerRepo {
	if client == nil {
		return nil
	}
	return &llmSummarizer{client: client}
}

func (r *llmSummarizer) SummarizeWindow(ctx context.Context, talker string, lines []string) (string, error) {
	user := "Conversation: " + talker + "\n\n" + strings.Join(lines, "\n")
	return r.client.Chat(ctx, summaryPrompt, user)
}
