package media

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/scribeai/scribe/internal/db/sqlc"
)

// File is the persisted record of an uploaded attachment.
type File struct {
	ID string `json:"id"`
	// Name is the stored path inside the storage bucket.
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	Pages        *int      `json:"pages,omitempty"`
	URL          string    `json:"url"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngestInput carries one uploaded attachment.
type IngestInput struct {
	OwnerID      string
	OriginalName string
	MediaType    string
	Data         []byte
	// Pages is the page count derived during extraction, if any.
	Pages *int
}

// Queries is the subset of sqlc queries the media service needs.
type Queries interface {
	CreateFile(ctx context.Context, arg sqlc.CreateFileParams) (sqlc.File, error)
	GetFileByID(ctx context.Context, id pgtype.UUID) (sqlc.File, error)
	DeleteFile(ctx context.Context, id pgtype.UUID) error
	ListOrphanFiles(ctx context.Context, arg sqlc.ListOrphanFilesParams) ([]sqlc.File, error)
}
