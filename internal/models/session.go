package models

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultTitle is used when a session has no messages to derive one from.
	DefaultTitle = "New conversation"

	titleLimit = 50
)

// ChatSession groups an ordered sequence of messages under one conversation.
type ChatSession struct {
	ID          int64         `json:"id"`
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Title       string        `json:"title"`
	LastUpdated time.Time     `json:"lastUpdated,omitempty"`
	Timestamp   time.Time     `json:"timestamp,omitempty"`
}

// SessionTitle derives a display title from the first message: its first 50
// characters with an ellipsis, or DefaultTitle when there are no messages.
func SessionTitle(messages []ChatMessage) string {
	if len(messages) == 0 || messages[0].Content == "" {
		return DefaultTitle
	}
	return Truncate(messages[0].Content, titleLimit) + "..."
}

// Truncate cuts a string to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
