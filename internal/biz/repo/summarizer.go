package repo

import "context"

// SummarizerRepo turns a window of raw message lines into a natural-language
// digest. Optional collaborator: a nil repo means the pipeline falls back to
// deterministic formatting.
type SummarizerRepo interface {
	SummarizeWindow(ctx context.Context, talker string, lines []string) (string, error)
}
