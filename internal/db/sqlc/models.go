package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Conversation struct {
	ID        pgtype.UUID        `json:"id"`
	UserID    string             `json:"user_id"`
	Title     string             `json:"title"`
	Type      string             `json:"type"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type File struct {
	ID           pgtype.UUID        `json:"id"`
	Name         string             `json:"name"`
	OriginalName string             `json:"original_name"`
	Type         string             `json:"type"`
	Size         int64              `json:"size"`
	Pages        pgtype.Int4        `json:"pages"`
	Url          string             `json:"url"`
	UserID       string             `json:"user_id"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type Message struct {
	ID             pgtype.UUID        `json:"id"`
	Seq            int64              `json:"seq"`
	ConversationID pgtype.UUID        `json:"conversation_id"`
	Role           string             `json:"role"`
	Content        string             `json:"content"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type MessageFile struct {
	MessageID pgtype.UUID `json:"message_id"`
	FileID    pgtype.UUID `json:"file_id"`
}
