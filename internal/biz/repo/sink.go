package repo

import "context"

// NoteMeta is the frontmatter metadata attached to every persisted note.
// The pipeline guarantees the source linkage is always present; it never
// inspects note content.
type NoteMeta struct {
	Title            string
	Type             string // note, digest
	Tags             []string
	Source           string
	Confidence       string
	SourceMessageIDs []string
}

// SinkRepo is the memory sink collaborator: it persists an accepted message
// or window aggregate as a note in a bucket and returns the note path
type SinkRepo interface {
	WriteNote(ctx context.Context, bucket, content string, meta NoteMeta) (string, error)
}
