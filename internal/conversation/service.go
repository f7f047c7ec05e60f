package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/scribeai/scribe/internal/db"
	"github.com/scribeai/scribe/internal/db/sqlc"
)

// Queries is the subset of sqlc queries the conversation service needs.
type Queries interface {
	CreateConversation(ctx context.Context, arg sqlc.CreateConversationParams) (sqlc.Conversation, error)
	GetConversationByID(ctx context.Context, id pgtype.UUID) (sqlc.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]sqlc.Conversation, error)
}

// DBService resolves and reads conversations.
type DBService struct {
	queries Queries
	logger  *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, queries Queries) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		queries: queries,
		logger:  log.With(slog.String("service", "conversation")),
	}
}

// Resolve returns existingID unchanged when set. Otherwise it creates a
// chat conversation titled from firstUserText and returns the new id.
func (s *DBService) Resolve(ctx context.Context, existingID, firstUserText, ownerID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	row, err := s.queries.CreateConversation(ctx, sqlc.CreateConversationParams{
		UserID: ownerID,
		Title:  DeriveTitle(firstUserText),
		Type:   TypeChat,
	})
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	id := dbpkg.UUIDToString(row.ID)
	s.logger.Debug("conversation created", slog.String("conversation_id", id), slog.String("user_id", ownerID))
	return id, nil
}

// Get returns a conversation owned by ownerID.
func (s *DBService) Get(ctx context.Context, id, ownerID string) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, ErrConversationNotFound
	}
	row, err := s.queries.GetConversationByID(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if row.UserID != ownerID {
		return Conversation{}, ErrConversationNotFound
	}
	return toConversation(row), nil
}

// ListByUser returns the user's conversations, newest first.
func (s *DBService) ListByUser(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.queries.ListConversationsByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		items = append(items, toConversation(row))
	}
	return items, nil
}

func toConversation(row sqlc.Conversation) Conversation {
	c := Conversation{
		ID:     dbpkg.UUIDToString(row.ID),
		UserID: row.UserID,
		Title:  row.Title,
		Type:   row.Type,
	}
	if row.CreatedAt.Valid {
		c.CreatedAt = row.CreatedAt.Time
	}
	return c
}
