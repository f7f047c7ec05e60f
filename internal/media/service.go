package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/unicode/norm"

	dbpkg "github.com/scribeai/scribe/internal/db"
	"github.com/scribeai/scribe/internal/db/sqlc"
	"github.com/scribeai/scribe/internal/storage"
)

const defaultMediaType = "application/octet-stream"

// Service stores attachment bytes and their file records.
type Service struct {
	queries  Queries
	provider storage.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, queries Queries, provider storage.Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries:  queries,
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
		now:      time.Now,
	}
}

// Ingest uploads the bytes under "{owner}/{unixMillis}-{name}" and writes
// the file record. Upload failures wrap ErrUpload; record failures wrap
// ErrRecord and remove the uploaded object.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (File, error) {
	if s.provider == nil {
		return File{}, fmt.Errorf("%w: %w", ErrUpload, ErrProviderUnavailable)
	}
	if strings.TrimSpace(input.OwnerID) == "" {
		return File{}, fmt.Errorf("owner id is required")
	}
	mediaType := strings.TrimSpace(input.MediaType)
	if mediaType == "" {
		mediaType = defaultMediaType
	}

	objectName := ObjectName(input.OwnerID, s.now(), input.OriginalName)
	obj, err := s.provider.Upload(ctx, objectName, bytes.NewReader(input.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	row, err := s.queries.CreateFile(ctx, sqlc.CreateFileParams{
		Name:         obj.StoredPath,
		OriginalName: input.OriginalName,
		Type:         mediaType,
		Size:         int64(len(input.Data)),
		Pages:        dbpkg.PtrToInt4(input.Pages),
		Url:          obj.URL,
		UserID:       input.OwnerID,
	})
	if err != nil {
		if delErr := s.provider.Delete(ctx, obj.StoredPath); delErr != nil {
			s.logger.Warn("remove object after failed record", slog.String("stored_path", obj.StoredPath), slog.Any("error", delErr))
		}
		return File{}, fmt.Errorf("%w: %w", ErrRecord, err)
	}
	return convertFile(row), nil
}

// Get returns a file owned by ownerID.
func (s *Service) Get(ctx context.Context, fileID, ownerID string) (File, error) {
	pgID, err := dbpkg.ParseUUID(fileID)
	if err != nil {
		return File{}, ErrFileNotFound
	}
	row, err := s.queries.GetFileByID(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("get file: %w", err)
	}
	if row.UserID != ownerID {
		return File{}, ErrFileNotFound
	}
	return convertFile(row), nil
}

// Open returns a reader for a file owned by ownerID.
func (s *Service) Open(ctx context.Context, fileID, ownerID string) (io.ReadCloser, File, error) {
	if s.provider == nil {
		return nil, File{}, ErrProviderUnavailable
	}
	file, err := s.Get(ctx, fileID, ownerID)
	if err != nil {
		return nil, File{}, err
	}
	reader, err := s.provider.Download(ctx, file.Name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, File{}, ErrFileNotFound
		}
		return nil, File{}, fmt.Errorf("open storage: %w", err)
	}
	return reader, file, nil
}

// Delete removes a file owned by ownerID from storage and the database.
func (s *Service) Delete(ctx context.Context, fileID, ownerID string) error {
	file, err := s.Get(ctx, fileID, ownerID)
	if err != nil {
		return err
	}
	return s.remove(ctx, file)
}

// Discard removes files created by a turn that did not complete. It keeps
// going past individual failures and returns them joined.
func (s *Service) Discard(ctx context.Context, files []File) error {
	var errs []error
	for _, f := range files {
		if err := s.remove(ctx, f); err != nil {
			s.logger.Warn("discard file failed", slog.String("file_id", f.ID), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) remove(ctx context.Context, file File) error {
	if s.provider != nil && file.Name != "" {
		if err := s.provider.Delete(ctx, file.Name); err != nil {
			return fmt.Errorf("delete object %s: %w", file.Name, err)
		}
	}
	pgID, err := dbpkg.ParseUUID(file.ID)
	if err != nil {
		return fmt.Errorf("invalid file id: %w", err)
	}
	if err := s.queries.DeleteFile(ctx, pgID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// ObjectName builds the storage key for an upload.
func ObjectName(ownerID string, at time.Time, originalName string) string {
	return path.Join(SanitizeName(ownerID), strconv.FormatInt(at.UnixMilli(), 10)+"-"+SanitizeName(originalName))
}

// SanitizeName reduces an uploaded file name to a single safe path segment.
// Names are NFC-normalized so the same name uploaded from different clients
// maps to the same key.
func SanitizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "file"
	}
	return name
}

func convertFile(row sqlc.File) File {
	f := File{
		ID:           dbpkg.UUIDToString(row.ID),
		Name:         row.Name,
		OriginalName: row.OriginalName,
		Type:         row.Type,
		Size:         row.Size,
		Pages:        dbpkg.Int4ToPtr(row.Pages),
		URL:          row.Url,
		UserID:       row.UserID,
	}
	if row.CreatedAt.Valid {
		f.CreatedAt = row.CreatedAt.Time
	}
	return f
}

// FromRow converts a sqlc file row.
func FromRow(row sqlc.File) File {
	return convertFile(row)
}
