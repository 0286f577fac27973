package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageImage references an uploaded image attached to a user message.
type MessageImage struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChatMessage is a single entry in a conversation. Content is always set,
// even on error messages, where it carries the human-readable error text.
type ChatMessage struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Image     *MessageImage `json:"image,omitempty"`
	Model     string        `json:"model,omitempty"`
	IsError   bool          `json:"isError,omitempty"`
}
