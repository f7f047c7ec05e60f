package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scribeai/scribe/internal/message"
)

// FallbackUserContent is stored as the user message when a turn has files
// but no text.
const FallbackUserContent = "Analyze these files"

// Recorded holds the ids of the two messages of a turn.
type Recorded struct {
	UserMessageID      string
	AssistantMessageID string
}

// Recorder writes a completed turn: the user message, its file links and
// the assistant reply, in that order.
type Recorder struct {
	messages message.Writer
	logger   *slog.Logger
}

func NewRecorder(log *slog.Logger, messages message.Writer) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		messages: messages,
		logger:   log.With(slog.String("service", "recorder")),
	}
}

// Record persists the turn. If a later write fails the user message is
// removed again so a turn leaves two messages or none.
func (r *Recorder) Record(ctx context.Context, ownerID, conversationID, userText string, fileIDs []string, replyText string) (Recorded, error) {
	content := userText
	if content == "" {
		content = FallbackUserContent
	}
	user, err := r.messages.Persist(ctx, message.PersistInput{
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           message.RoleUser,
		Content:        content,
	})
	if err != nil {
		return Recorded{}, fmt.Errorf("persist user message: %w", err)
	}

	if err := r.messages.LinkFiles(ctx, user.ID, fileIDs); err != nil {
		r.rollback(ctx, user.ID)
		return Recorded{}, fmt.Errorf("link files: %w", err)
	}

	assistant, err := r.messages.Persist(ctx, message.PersistInput{
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           message.RoleAssistant,
		Content:        replyText,
	})
	if err != nil {
		r.rollback(ctx, user.ID)
		return Recorded{}, fmt.Errorf("persist assistant message: %w", err)
	}
	return Recorded{UserMessageID: user.ID, AssistantMessageID: assistant.ID}, nil
}

func (r *Recorder) rollback(ctx context.Context, userMessageID string) {
	if err := r.messages.Delete(ctx, userMessageID); err != nil {
		r.logger.Warn("remove partially recorded user message failed",
			slog.String("message_id", userMessageID),
			slog.Any("error", err),
		)
	}
}
