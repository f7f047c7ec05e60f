package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/scribeai/scribe/internal/media"
)

// FileAccess reads and removes a user's stored files.
type FileAccess interface {
	Open(ctx context.Context, fileID, ownerID string) (io.ReadCloser, media.File, error)
	Delete(ctx context.Context, fileID, ownerID string) error
}

type FileHandler struct {
	files  FileAccess
	logger *slog.Logger
}

func NewFileHandler(log *slog.Logger, files FileAccess) *FileHandler {
	return &FileHandler{
		files:  files,
		logger: log.With(slog.String("handler", "file")),
	}
}

func (h *FileHandler) Register(e *echo.Echo) {
	group := e.Group("/files")
	group.GET("/:id/download", h.Download)
	group.DELETE("/:id", h.Delete)
}

// Download godoc
// @Summary Download an uploaded file
// @Tags files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	reader, file, err := h.files.Open(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, media.ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		h.logger.Error("open file failed", slog.String("file_id", c.Param("id")), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open file")
	}
	defer reader.Close()

	contentType := file.Type
	if contentType == "" {
		contentType = genericMimeType
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), reader)
	return err
}

// Delete godoc
// @Summary Delete an uploaded file
// @Tags files
// @Param id path string true "File ID"
// @Success 204 "No Content"
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	if err := h.files.Delete(c.Request().Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, media.ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		h.logger.Error("delete file failed", slog.String("file_id", c.Param("id")), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete file")
	}
	return c.NoContent(http.StatusNoContent)
}

// StorageHandler serves the local storage root at /storage so that the
// URLs recorded on files resolve. Keys are laid out as
// {bucket}/{owner}/{name}, and only the owner may read them. Browsers can
// pass the bearer token as ?token=.
type StorageHandler struct {
	root string
}

func NewStorageHandler(root string) *StorageHandler {
	return &StorageHandler{root: root}
}

// StoragePrefix is the URL prefix of stored objects.
const StoragePrefix = "/storage"

func (h *StorageHandler) Register(e *echo.Echo) {
	if h.root == "" {
		return
	}
	e.GET(StoragePrefix+"/*", h.Serve)
}

func (h *StorageHandler) Serve(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	key := strings.TrimPrefix(path.Clean("/"+c.Param("*")), "/")
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[1] != media.SanitizeName(userID) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return c.File(filepath.Join(h.root, filepath.FromSlash(key)))
}
