package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/google/uuid"
)

// noteRepo implements the memory sink as bucket directories of frontmatter
// markdown notes
type noteRepo struct {
	root string
}

// NewNoteRepo creates the filesystem memory sink and bootstraps the bucket
// layout under root
func NewNoteRepo(root string) (repo.SinkRepo, error) {
	for _, bucket := range domain.Buckets {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0755); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	fmt.Printf("[Notes] Memory layout ready at %s\n", root)
	return &noteRepo{root: root}, nil
}

func (r *noteRepo) WriteNote(ctx context.Context, bucket, content string, meta repo.NoteMeta) (string, error) {
	if !domain.KnownBucket(bucket) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownBucket, bucket)
	}

	name := fmt.Sprintf("%s-%s-%s.md",
		time.Now().Format("20060102-150405"),
		shortID(),
		sanitizeTitle(meta.Title))
	path := filepath.Join(r.root, bucket, name)

	body := buildFrontmatter(meta) + "\n" + strings.TrimSpace(content) + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("failed to write note: %w", err)
	}
	return path, nil
}

func buildFrontmatter(meta repo.NoteMeta) string {
	noteType := meta.Type
	if noteType == "" {
		noteType = "note"
	}
	confidence := meta.Confidence
	if confidence == "" {
		confidence = "medium"
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString("title: " + flattenTitle(meta.Title) + "\n")
	sb.WriteString("type: " + noteType + "\n")
	sb.WriteString("tags: [" + strings.Join(meta.Tags, ", ") + "]\n")
	sb.WriteString("source: " + meta.Source + "\n")
	sb.WriteString("updated_at: " + time.Now().Format("2006-01-02T15:04:05") + "\n")
	sb.WriteString("confidence: " + confidence + "\n")
	sb.WriteString("source_message_ids: [" + strings.Join(meta.SourceMessageIDs, ", ") + "]\n")
	sb.WriteString("---\n")
	return sb.String()
}

// flattenTitle keeps the metadata block at one line per key regardless of
// what the title carries
func flattenTitle(title string) string {
	replacer := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	return strings.TrimSpace(replacer.Replace(title))
}

func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "capture"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_", "\n", "-", "\t", "-")
	title = replacer.Replace(title)
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	return title
}
