package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/scribeai/scribe/internal/config"
	"github.com/scribeai/scribe/internal/conversation/flow"
	"github.com/scribeai/scribe/internal/media"
)

const (
	formFieldFiles  = "files"
	genericMimeType = "application/octet-stream"
)

// TurnRunner runs one chat turn.
type TurnRunner interface {
	HandleTurn(ctx context.Context, in flow.TurnInput) (flow.TurnResult, error)
}

// ChatRequest is the JSON or multipart body of POST /chat.
type ChatRequest struct {
	Content        string `json:"content" form:"content"`
	ConversationID string `json:"conversationId" form:"conversationId" validate:"omitempty,uuid"`
}

// ChatResponse is returned for a completed turn.
type ChatResponse struct {
	ConversationID string   `json:"conversationId"`
	Response       string   `json:"response"`
	SkippedFiles   []string `json:"skipped_files"`
}

type ChatHandler struct {
	runner        TurnRunner
	maxFiles      int
	uploadLimit   media.UploadLimit
	ratePerMinute int
	logger        *slog.Logger
}

func NewChatHandler(log *slog.Logger, runner TurnRunner, cfg config.Config) *ChatHandler {
	return &ChatHandler{
		runner:        runner,
		maxFiles:      cfg.Chat.MaxFilesPerTurn,
		uploadLimit:   media.UploadLimit(cfg.Media.MaxUploadBytes),
		ratePerMinute: cfg.Chat.RatePerMinute,
		logger:        log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	var mws []echo.MiddlewareFunc
	if h.ratePerMinute > 0 {
		mws = append(mws, perUserRateLimiter(h.ratePerMinute))
	}
	e.POST("/chat", h.Chat, mws...)
}

// perUserRateLimiter allows perMinute turns per user with a burst of the
// same size. Requests without a user are left to the handler to reject.
func perUserRateLimiter(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 10 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return requireUserID(c)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return err
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many chat requests")
		},
	})
}

// Chat godoc
// @Summary Send a chat turn
// @Description Sends text and optional PDF, DOCX or image attachments. A new conversation is created when conversationId is empty.
// @Tags chat
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param content formData string false "Message text"
// @Param conversationId formData string false "Existing conversation ID"
// @Param files formData file false "Attachments"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	uploads, err := h.readUploads(c)
	if err != nil {
		return err
	}
	if req.Content == "" && len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "content or files is required")
	}

	result, err := h.runner.HandleTurn(c.Request().Context(), flow.TurnInput{
		OwnerID:        userID,
		ConversationID: req.ConversationID,
		Text:           req.Content,
		Files:          uploads,
	})
	if err != nil {
		if flow.KindOf(err) == flow.KindUnauthenticated {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message:        "failed to process chat",
			ConversationID: flow.ConversationIDOf(err),
		})
	}

	skipped := result.SkippedFiles
	if skipped == nil {
		skipped = []string{}
	}
	return c.JSON(http.StatusOK, ChatResponse{
		ConversationID: result.ConversationID,
		Response:       result.Reply,
		SkippedFiles:   skipped,
	})
}

func (h *ChatHandler) readUploads(c echo.Context) ([]flow.Upload, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	headers := form.File[formFieldFiles]
	if h.maxFiles > 0 && len(headers) > h.maxFiles {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d files per message", h.maxFiles))
	}
	uploads := make([]flow.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := h.readUpload(fh)
		if err != nil {
			if errors.Is(err, media.ErrFileTooLarge) {
				return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
			}
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func (h *ChatHandler) readUpload(fh *multipart.FileHeader) (flow.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return flow.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := h.uploadLimit.Read(f, fh.Size)
	if err != nil {
		return flow.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return flow.Upload{
		Name:      fh.Filename,
		MediaType: detectMediaType(fh.Header.Get(echo.HeaderContentType), fh.Filename, data),
		Data:      data,
	}, nil
}

// detectMediaType trusts the declared part type unless it is missing or
// generic, then falls back to the extension and finally to content sniffing.
func detectMediaType(declared, filename string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" && !strings.HasPrefix(declared, genericMimeType) {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return mimetype.Detect(data).String()
}
