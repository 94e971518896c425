package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// ContentType classifies the payload of an inbound message
type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeMedia  ContentType = "media"
	ContentTypeSystem ContentType = "system"
)

// ErrMalformedPayload is returned when a payload is missing the fields
// needed to identify a message (talker and timestamp)
var ErrMalformedPayload = errors.New("malformed payload: talker and timestamp are required")

// Message represents one inbound chat event. A Message is immutable once
// constructed; it is classified but never mutated after intake.
type Message struct {
	Talker      string
	SenderID    string
	SenderName  string
	IsSelf      bool
	Seq         int64 // monotonic per talker when provided by the source, 0 when absent
	Timestamp   time.Time
	ContentType ContentType
	Content     string
}

// NormalizeMessage builds a Message from the wire-level fields shared by the
// webhook payload and the gateway history API. It fails with
// ErrMalformedPayload when talker or timestamp is missing.
func NormalizeMessage(talker, senderID, senderName string, isSelf bool, seq int64, timestamp time.Time, typeCode int, content string) (*Message, error) {
	if talker == "" || timestamp.IsZero() {
		return nil, ErrMalformedPayload
	}
	return &Message{
		Talker:      talker,
		SenderID:    senderID,
		SenderName:  senderName,
		IsSelf:      isSelf,
		Seq:         seq,
		Timestamp:   timestamp,
		ContentType: ContentTypeFromCode(typeCode),
		Content:     content,
	}, nil
}

// ContentTypeFromCode maps the gateway's numeric message type to a ContentType
func ContentTypeFromCode(code int) ContentType {
	switch code {
	case 1:
		return ContentTypeText
	case 10000, 10002:
		return ContentTypeSystem
	default:
		return ContentTypeMedia
	}
}

// IdempotencyKey derives the dedup key for this message: the source sequence
// number when present, otherwise a content hash over the identifying fields.
// Two messages with equal keys are the same event regardless of channel.
func (m *Message) IdempotencyKey() string {
	if m.Seq > 0 {
		return strconv.FormatInt(m.Seq, 10)
	}
	raw := m.Talker + "|" + m.SenderID + "|" + m.Timestamp.UTC().Format(time.RFC3339) + "|" + m.Content
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SenderLabel returns a display name for the sender
func (m *Message) SenderLabel() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderID
}

// ParseMessageTime parses the timestamp formats the gateway emits
func ParseMessageTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrMalformedPayload
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrMalformedPayload
}
