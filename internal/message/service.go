package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/scribeai/scribe/internal/conversation"
	dbpkg "github.com/scribeai/scribe/internal/db"
	"github.com/scribeai/scribe/internal/db/sqlc"
	"github.com/scribeai/scribe/internal/media"
)

// ErrInvalidRole indicates a role other than user or assistant.
var ErrInvalidRole = errors.New("invalid message role")

// DBService persists and reads conversation messages.
type DBService struct {
	queries Queries
	logger  *slog.Logger
}

var _ Service = (*DBService)(nil)

// NewService creates a message service.
func NewService(log *slog.Logger, queries Queries) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		queries: queries,
		logger:  log.With(slog.String("service", "message")),
	}
}

// Persist writes a single message. The insert only succeeds when the
// conversation exists and belongs to input.OwnerID; otherwise it returns
// conversation.ErrConversationNotFound.
func (s *DBService) Persist(ctx context.Context, input PersistInput) (Message, error) {
	if input.Role != RoleUser && input.Role != RoleAssistant {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, input.Role)
	}
	pgConvID, err := dbpkg.ParseUUID(input.ConversationID)
	if err != nil {
		return Message{}, conversation.ErrConversationNotFound
	}
	row, err := s.queries.CreateMessage(ctx, sqlc.CreateMessageParams{
		ConversationID: pgConvID,
		UserID:         input.OwnerID,
		Role:           input.Role,
		Content:        input.Content,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, conversation.ErrConversationNotFound
		}
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return toMessage(row), nil
}

// LinkFiles attaches every file to the message in one write. It fails when
// any file id is invalid or was not linked.
func (s *DBService) LinkFiles(ctx context.Context, messageID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	pgMsgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	pgFileIDs, err := dbpkg.ParseUUIDs(fileIDs)
	if err != nil {
		return err
	}
	n, err := s.queries.CreateMessageFiles(ctx, sqlc.CreateMessageFilesParams{
		MessageID: pgMsgID,
		FileIds:   pgFileIDs,
	})
	if err != nil {
		return fmt.Errorf("link message files: %w", err)
	}
	if n != int64(len(pgFileIDs)) {
		return fmt.Errorf("linked %d of %d files to message %s", n, len(pgFileIDs), messageID)
	}
	return nil
}

// Delete removes a message and its file links.
func (s *DBService) Delete(ctx context.Context, messageID string) error {
	pgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	if err := s.queries.DeleteMessage(ctx, pgID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ListByConversation returns the messages of an owned conversation in
// insertion order, each with its attached files.
func (s *DBService) ListByConversation(ctx context.Context, conversationID, ownerID string) ([]Message, error) {
	pgConvID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, conversation.ErrConversationNotFound
	}
	rows, err := s.queries.ListMessagesByConversation(ctx, sqlc.ListMessagesByConversationParams{
		ConversationID: pgConvID,
		UserID:         ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, toMessage(row))
	}
	s.enrichFiles(ctx, messages, rows)
	return messages, nil
}

// enrichFiles batch-loads file links for a list of messages.
func (s *DBService) enrichFiles(ctx context.Context, messages []Message, rows []sqlc.Message) {
	if len(rows) == 0 {
		return
	}
	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	links, err := s.queries.ListFilesByMessages(ctx, ids)
	if err != nil {
		s.logger.Warn("enrich files failed", slog.Any("error", err))
		return
	}
	fileMap := map[string][]media.File{}
	for _, link := range links {
		msgID := dbpkg.UUIDToString(link.MessageID)
		fileMap[msgID] = append(fileMap[msgID], media.FromRow(link.File))
	}
	for i := range messages {
		if files, ok := fileMap[messages[i].ID]; ok {
			messages[i].Files = files
		}
	}
}

func toMessage(row sqlc.Message) Message {
	m := Message{
		ID:             dbpkg.UUIDToString(row.ID),
		ConversationID: dbpkg.UUIDToString(row.ConversationID),
		Role:           row.Role,
		Content:        row.Content,
	}
	if row.CreatedAt.Valid {
		m.CreatedAt = row.CreatedAt.Time
	}
	return m
}
