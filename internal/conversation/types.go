// Package conversation defines conversation domain types and rules.
package conversation

import (
	"errors"
	"time"
)

// TypeChat is the only conversation type created by chat turns.
const TypeChat = "chat"

// DefaultTitle names conversations started without text.
const DefaultTitle = "New Chat"

// MaxTitleRunes bounds derived titles.
const MaxTitleRunes = 50

// ErrConversationNotFound indicates the conversation does not exist or is
// owned by another user.
var ErrConversationNotFound = errors.New("conversation not found")

// Conversation is a titled, user-owned container of messages.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// DeriveTitle returns the first MaxTitleRunes characters of text, or
// DefaultTitle when text is empty.
func DeriveTitle(text string) string {
	if text == "" {
		return DefaultTitle
	}
	n := 0
	for i := range text {
		if n == MaxTitleRunes {
			return text[:i]
		}
		n++
	}
	return text
}
