package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestUserCreate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	user := &model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleUser, PasswordHash: "hash"}
	user.ID = uuid.New()
	user.CreatedAt, user.UpdatedAt = now, now

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(user.ID.String(), "alice", "alice@example.com", model.RoleUser, "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Users().Create(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	user := &model.User{Username: "alice"}
	user.ID = uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	err := store.Users().Create(context.Background(), user)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageGetForUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE id = $1 FOR UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Messages().GetForUpdate(context.Background(), id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageGetScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	id, sender, receiver := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "parent_id", "subject", "content", "is_read", "edited", "created_at", "updated_at"}).
		AddRow(id.String(), sender.String(), receiver.String(), nil, "subj", "hello", false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE id = $1")).WithArgs(id.String()).WillReturnRows(rows)

	msg, err := store.Messages().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sender, msg.SenderID)
	assert.Nil(t, msg.ParentID)
	assert.True(t, msg.Edited)
	assert.Equal(t, "hello", msg.Content)
}

func TestWithTxCommitAndRollback(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE user_id = $1")).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		n, err := tx.Notifications().DeleteByUser(ctx, userID)
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM message_histories")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		_, err := tx.Histories().DeleteByMessages(ctx, []uuid.UUID{uuid.New()})
		return err
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetachRepliesSkipsEmptyInput(t *testing.T) {
	store, mock := newMockStore(t)

	n, err := store.Messages().DetachReplies(context.Background(), nil, uuid.Nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetachReplies(t *testing.T) {
	store, mock := newMockStore(t)
	except := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET parent_id = NULL")).
		WithArgs(sqlmock.AnyArg(), except.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Messages().DetachReplies(context.Background(), []uuid.UUID{uuid.New()}, except)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventLogListBuildsFilters(t *testing.T) {
	store, mock := newMockStore(t)
	uid := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("AND event_type = $1 AND related_user_id = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs(string(model.EventUserDeleted), uid.String(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "related_user_id", "description", "metadata", "created_at"}).
			AddRow(uuid.New().String(), "user_deleted", nil, "removed", []byte(`{"total_deleted":3}`), time.Now()))

	logs, err := store.EventLogs().List(context.Background(), model.EventLogFilter{
		EventType:     model.EventUserDeleted,
		RelatedUserID: &uid,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].RelatedUserID)
	assert.EqualValues(t, 3, logs[0].Metadata["total_deleted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkFailedFinal(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs(string(model.OutboxStatusFailed), "broker down", id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Outbox().MarkFailed(context.Background(), id, "broker down", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}
