package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createFile = `-- name: CreateFile :one
INSERT INTO files (name, original_name, type, size, pages, url, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, name, original_name, type, size, pages, url, user_id, created_at
`

type CreateFileParams struct {
	Name         string      `json:"name"`
	OriginalName string      `json:"original_name"`
	Type         string      `json:"type"`
	Size         int64       `json:"size"`
	Pages        pgtype.Int4 `json:"pages"`
	Url          string      `json:"url"`
	UserID       string      `json:"user_id"`
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (File, error) {
	row := q.db.QueryRow(ctx, createFile,
		arg.Name,
		arg.OriginalName,
		arg.Type,
		arg.Size,
		arg.Pages,
		arg.Url,
		arg.UserID,
	)
	var i File
	err := scanFile(row, &i)
	return i, err
}

const getFileByID = `-- name: GetFileByID :one
SELECT id, name, original_name, type, size, pages, url, user_id, created_at
FROM files
WHERE id = $1
`

func (q *Queries) GetFileByID(ctx context.Context, id pgtype.UUID) (File, error) {
	row := q.db.QueryRow(ctx, getFileByID, id)
	var i File
	err := scanFile(row, &i)
	return i, err
}

const deleteFile = `-- name: DeleteFile :exec
DELETE FROM files
WHERE id = $1
`

func (q *Queries) DeleteFile(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteFile, id)
	return err
}

const listOrphanFiles = `-- name: ListOrphanFiles :many
SELECT f.id, f.name, f.original_name, f.type, f.size, f.pages, f.url, f.user_id, f.created_at
FROM files f
WHERE f.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM message_files mf WHERE mf.file_id = f.id)
ORDER BY f.created_at
LIMIT $2
`

type ListOrphanFilesParams struct {
	CreatedBefore pgtype.Timestamptz `json:"created_before"`
	MaxCount      int32              `json:"max_count"`
}

func (q *Queries) ListOrphanFiles(ctx context.Context, arg ListOrphanFilesParams) ([]File, error) {
	rows, err := q.db.Query(ctx, listOrphanFiles, arg.CreatedBefore, arg.MaxCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []File
	for rows.Next() {
		var i File
		if err := scanFile(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner, i *File) error {
	return row.Scan(
		&i.ID,
		&i.Name,
		&i.OriginalName,
		&i.Type,
		&i.Size,
		&i.Pages,
		&i.Url,
		&i.UserID,
		&i.CreatedAt,
	)
}
