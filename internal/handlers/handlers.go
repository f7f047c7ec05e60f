// Package handlers exposes the chat service over HTTP.
package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/scribeai/scribe/internal/auth"
)

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

func requireUserID(c echo.Context) (string, error) {
	return auth.UserIDFromContext(c)
}
