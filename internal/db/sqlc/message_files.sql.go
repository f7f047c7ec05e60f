package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createMessageFiles = `-- name: CreateMessageFiles :execrows
INSERT INTO message_files (message_id, file_id)
SELECT $1, f.id
FROM unnest($2::uuid[]) AS ids(id)
JOIN files f ON f.id = ids.id
`

type CreateMessageFilesParams struct {
	MessageID pgtype.UUID   `json:"message_id"`
	FileIds   []pgtype.UUID `json:"file_ids"`
}

// CreateMessageFiles links every file to the message in one statement and
// reports how many rows were written.
func (q *Queries) CreateMessageFiles(ctx context.Context, arg CreateMessageFilesParams) (int64, error) {
	result, err := q.db.Exec(ctx, createMessageFiles, arg.MessageID, arg.FileIds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listFilesByMessages = `-- name: ListFilesByMessages :many
SELECT mf.message_id, f.id, f.name, f.original_name, f.type, f.size, f.pages, f.url, f.user_id, f.created_at
FROM message_files mf
JOIN files f ON f.id = mf.file_id
WHERE mf.message_id = ANY($1::uuid[])
ORDER BY f.created_at, f.id
`

type ListFilesByMessagesRow struct {
	MessageID pgtype.UUID `json:"message_id"`
	File      File        `json:"file"`
}

func (q *Queries) ListFilesByMessages(ctx context.Context, messageIds []pgtype.UUID) ([]ListFilesByMessagesRow, error) {
	rows, err := q.db.Query(ctx, listFilesByMessages, messageIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListFilesByMessagesRow
	for rows.Next() {
		var i ListFilesByMessagesRow
		if err := rows.Scan(
			&i.MessageID,
			&i.File.ID,
			&i.File.Name,
			&i.File.OriginalName,
			&i.File.Type,
			&i.File.Size,
			&i.File.Pages,
			&i.File.Url,
			&i.File.UserID,
			&i.File.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
