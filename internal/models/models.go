package models

import (
	"context"
	"strings"
)

// PreviewLimit is the maximum length of an EmailEvent content preview.
const PreviewLimit = 200

// EmailEvent is the immutable value handed to the notification dispatcher
// for every message that passed the filter engine.
type EmailEvent struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Preview string `json:"content_preview"`
}

// NewEmailEvent builds an event from a decoded message, truncating the
// content preview to PreviewLimit characters with an ellipsis suffix.
func NewEmailEvent(id, sender, subject, date, content string) EmailEvent {
	return EmailEvent{
		ID:      id,
		Sender:  sender,
		Subject: subject,
		Date:    date,
		Preview: TruncatePreview(content),
	}
}

// TruncatePreview shortens content to PreviewLimit characters followed by
// "...". Content at or under the limit is returned unchanged.
func TruncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLimit {
		return content
	}
	return string(runes[:PreviewLimit]) + "..."
}

// SenderName extracts a display name from a full From header value:
// the part before "<", or the local part of a bare address.
func (e EmailEvent) SenderName() string {
	s := e.Sender
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if name := strings.TrimSpace(s[:i]); name != "" {
			return name
		}
		s = strings.Trim(s[i+1:], "<> ")
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// TruncateSubject shortens a subject for space-constrained channels.
func (e EmailEvent) TruncateSubject(max int) string {
	runes := []rune(e.Subject)
	if len(runes) <= max {
		return e.Subject
	}
	return string(runes[:max]) + "..."
}

// Channel is one independent notification delivery mechanism. Send
// failures are logged by the dispatcher, never escalated.
type Channel interface {
	Name() string
	Send(ctx context.Context, event EmailEvent) error
}
