package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

func addUser(t *testing.T, store *memory.Store, name string) *model.User {
	t.Helper()
	u := &model.User{Base: model.Base{ID: uuid.New(), CreatedAt: time.Now().UTC()}, Username: name, Email: name + "@example.com"}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func TestUserWithoutMessages(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewNop()
	c := NewCoordinator(eventlog.NewService(store, m), m)
	u := addUser(t, store, "ghost")

	var sum model.CleanupSummary
	err := store.WithTx(context.Background(), func(ctx context.Context, tx repository.Repositories) error {
		var err error
		sum, err = c.UserDeleted(ctx, tx, u)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, sum.TotalDeleted())

	logs, err := store.EventLogs().List(context.Background(), model.EventLogFilter{EventType: model.EventUserDeleted})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "User 'ghost' was deleted", logs[0].Description)
	assert.EqualValues(t, 0, logs[0].Metadata["total_deleted"])
}

func TestHistoriesOfReceivedMessagesAreRemoved(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewNop()
	c := NewCoordinator(eventlog.NewService(store, m), m)
	ctx := context.Background()
	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	msg := &model.Message{Base: model.Base{ID: uuid.New(), CreatedAt: time.Now().UTC()}, SenderID: alice.ID, ReceiverID: bob.ID, Content: "v2"}
	require.NoError(t, store.Messages().Create(ctx, msg))
	require.NoError(t, store.Histories().Create(ctx, &model.MessageHistory{ID: uuid.New(), MessageID: msg.ID, OldContent: "v1", EditedBy: alice.ID}))

	var sum model.CleanupSummary
	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		sum, err = c.UserDeleted(ctx, tx, bob)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.MessageHistories)
	assert.Equal(t, int64(1), sum.MessagesReceived)

	c.Observe(sum)
	var out dto.Metric
	require.NoError(t, m.CascadeRows.WithLabelValues("messages_received").Write(&out))
	assert.Equal(t, 1.0, out.GetCounter().GetValue())
}

func TestOtherUsersNotificationsFollowDeletedMessages(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewNop()
	c := NewCoordinator(eventlog.NewService(store, m), m)
	ctx := context.Background()
	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")
	carol := addUser(t, store, "carol")

	fromAlice := &model.Message{Base: model.Base{ID: uuid.New(), CreatedAt: time.Now().UTC()}, SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"}
	fromCarol := &model.Message{Base: model.Base{ID: uuid.New(), CreatedAt: time.Now().UTC()}, SenderID: carol.ID, ReceiverID: bob.ID, Content: "hey"}
	for _, msg := range []*model.Message{fromAlice, fromCarol} {
		require.NoError(t, store.Messages().Create(ctx, msg))
		id := msg.ID
		require.NoError(t, store.Notifications().Create(ctx, &model.Notification{
			ID: uuid.New(), UserID: bob.ID, Type: model.NotificationMessageReceived,
			MessageID: &id, Title: "New message", CreatedAt: time.Now().UTC(),
		}))
	}

	var sum model.CleanupSummary
	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		sum, err = c.UserDeleted(ctx, tx, alice)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.LinkedNotifications)
	assert.Equal(t, int64(2), sum.TotalDeleted())

	notes, err := store.Notifications().ListByUser(ctx, bob.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].MessageID)
	assert.Equal(t, fromCarol.ID, *notes[0].MessageID)

	c.Observe(sum)
	var out dto.Metric
	require.NoError(t, m.CascadeRows.WithLabelValues("linked_notifications").Write(&out))
	assert.Equal(t, 1.0, out.GetCounter().GetValue())
}
