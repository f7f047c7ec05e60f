package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribeai/scribe/internal/conversation"
	"github.com/scribeai/scribe/internal/message"
)

// ConversationReader lists a user's conversations.
type ConversationReader interface {
	Get(ctx context.Context, id, ownerID string) (conversation.Conversation, error)
	ListByUser(ctx context.Context, ownerID string) ([]conversation.Conversation, error)
}

// MessageReader lists the messages of a conversation.
type MessageReader interface {
	ListByConversation(ctx context.Context, conversationID, ownerID string) ([]message.Message, error)
}

type ListConversationsResponse struct {
	Items []conversation.Conversation `json:"items"`
}

type ListMessagesResponse struct {
	Items []message.Message `json:"items"`
}

type ConversationHandler struct {
	conversations ConversationReader
	messages      MessageReader
	logger        *slog.Logger
}

func NewConversationHandler(log *slog.Logger, conversations ConversationReader, messages MessageReader) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		logger:        log.With(slog.String("handler", "conversation")),
	}
}

func (h *ConversationHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations")
	group.GET("", h.List)
	group.GET("/:id/messages", h.ListMessages)
}

// List godoc
// @Summary List conversations
// @Tags conversations
// @Produce json
// @Success 200 {object} ListConversationsResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /conversations [get]
func (h *ConversationHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	items, err := h.conversations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("list conversations failed", slog.String("user_id", userID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}
	if items == nil {
		items = []conversation.Conversation{}
	}
	return c.JSON(http.StatusOK, ListConversationsResponse{Items: items})
}

// ListMessages godoc
// @Summary List messages of a conversation
// @Description Messages are returned oldest first with their attached files.
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} ListMessagesResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	conversationID := c.Param("id")
	if _, err := h.conversations.Get(ctx, conversationID, userID); err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load conversation")
	}
	items, err := h.messages.ListByConversation(ctx, conversationID, userID)
	if err != nil {
		h.logger.Error("list messages failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list messages")
	}
	if items == nil {
		items = []message.Message{}
	}
	return c.JSON(http.StatusOK, ListMessagesResponse{Items: items})
}
