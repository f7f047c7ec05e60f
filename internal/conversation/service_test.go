package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeai/scribe/internal/db/sqlc"
)

type fakeQueries struct {
	created []sqlc.CreateConversationParams
	rows    map[[16]byte]sqlc.Conversation
	err     error
}

func (q *fakeQueries) CreateConversation(_ context.Context, arg sqlc.CreateConversationParams) (sqlc.Conversation, error) {
	if q.err != nil {
		return sqlc.Conversation{}, q.err
	}
	q.created = append(q.created, arg)
	row := sqlc.Conversation{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		UserID:    arg.UserID,
		Title:     arg.Title,
		Type:      arg.Type,
		CreatedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	if q.rows == nil {
		q.rows = map[[16]byte]sqlc.Conversation{}
	}
	q.rows[row.ID.Bytes] = row
	return row, nil
}

func (q *fakeQueries) GetConversationByID(_ context.Context, id pgtype.UUID) (sqlc.Conversation, error) {
	row, ok := q.rows[id.Bytes]
	if !ok {
		return sqlc.Conversation{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *fakeQueries) ListConversationsByUser(_ context.Context, userID string) ([]sqlc.Conversation, error) {
	var out []sqlc.Conversation
	for _, row := range q.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestDeriveTitle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultTitle, DeriveTitle(""))
	assert.Equal(t, "Summarize this", DeriveTitle("Summarize this"))

	long := strings.Repeat("a", 80)
	assert.Equal(t, long[:50], DeriveTitle(long))

	wide := strings.Repeat("日", 60)
	assert.Equal(t, strings.Repeat("日", 50), DeriveTitle(wide))
}

func TestResolveExistingIDSkipsDatabase(t *testing.T) {
	t.Parallel()
	q := &fakeQueries{}
	svc := NewService(nil, q)

	for i := 0; i < 3; i++ {
		id, err := svc.Resolve(context.Background(), "existing-id", "hello", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "existing-id", id)
	}
	assert.Empty(t, q.created)
}

func TestResolveCreatesConversation(t *testing.T) {
	t.Parallel()
	q := &fakeQueries{}
	svc := NewService(nil, q)

	id, err := svc.Resolve(context.Background(), "", "", "user-1")
	require.NoError(t, err)
	require.Len(t, q.created, 1)
	assert.Equal(t, sqlc.CreateConversationParams{UserID: "user-1", Title: DefaultTitle, Type: TypeChat}, q.created[0])

	got, err := svc.Get(context.Background(), id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, got.Title)
}

func TestResolveFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("insert failed")
	svc := NewService(nil, &fakeQueries{err: boom})
	_, err := svc.Resolve(context.Background(), "", "hi", "user-1")
	require.ErrorIs(t, err, boom)
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()
	q := &fakeQueries{}
	svc := NewService(nil, q)
	id, err := svc.Resolve(context.Background(), "", "mine", "owner")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), id, "someone-else")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = svc.Get(context.Background(), "not-a-uuid", "owner")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = svc.Get(context.Background(), uuid.NewString(), "owner")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	list, err := svc.ListByUser(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Title)
}
