package message

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/scribeai/scribe/internal/db/sqlc"
	"github.com/scribeai/scribe/internal/media"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single persisted conversation message.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           string       `json:"role"`
	Content        string       `json:"content"`
	Files          []media.File `json:"files,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PersistInput is the input for persisting a message.
type PersistInput struct {
	ConversationID string
	// OwnerID must own the conversation or the write is rejected.
	OwnerID string
	Role    string
	Content string
}

// Queries is the subset of sqlc queries the message service needs.
type Queries interface {
	CreateMessage(ctx context.Context, arg sqlc.CreateMessageParams) (sqlc.Message, error)
	DeleteMessage(ctx context.Context, id pgtype.UUID) error
	ListMessagesByConversation(ctx context.Context, arg sqlc.ListMessagesByConversationParams) ([]sqlc.Message, error)
	CreateMessageFiles(ctx context.Context, arg sqlc.CreateMessageFilesParams) (int64, error)
	ListFilesByMessages(ctx context.Context, messageIds []pgtype.UUID) ([]sqlc.ListFilesByMessagesRow, error)
}

// Writer defines write behavior needed by the turn recorder.
type Writer interface {
	Persist(ctx context.Context, input PersistInput) (Message, error)
	LinkFiles(ctx context.Context, messageID string, fileIDs []string) error
	Delete(ctx context.Context, messageID string) error
}

// Service defines message read/write behavior.
type Service interface {
	Writer
	ListByConversation(ctx context.Context, conversationID, ownerID string) ([]Message, error)
}
