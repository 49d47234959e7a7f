package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	"github.com/jwalitptl/messaging-api/internal/service/history"
	"github.com/jwalitptl/messaging-api/internal/service/notification"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	m     *metrics.Metrics
	alice *model.User
	bob   *model.User
	carol *model.User
}

func newFixture(t *testing.T, policy history.Policy) *fixture {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewNop()
	events := eventlog.NewService(store, m)
	svc := NewService(store, history.NewRecorder(policy, m), notification.NewService(store, events, m), events, m, logger.Nop())

	f := &fixture{store: store, svc: svc, m: m}
	f.alice = f.addUser(t, "alice", model.RoleUser)
	f.bob = f.addUser(t, "bob", model.RoleUser)
	f.carol = f.addUser(t, "carol", model.RoleModerator)
	return f
}

func (f *fixture) addUser(t *testing.T, name, role string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u := &model.User{
		Base:     model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username: name,
		Email:    name + "@example.com",
		Role:     role,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func actor(u *model.User) model.Actor {
	return model.Actor{ID: u.ID, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func (f *fixture) send(t *testing.T, from, to *model.User, content string, parent *uuid.UUID) *model.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), actor(from), model.MessageInput{
		ReceiverID: to.ID,
		ParentID:   parent,
		Subject:    "subject",
		Content:    content,
	})
	require.NoError(t, err)
	return msg
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}

func (f *fixture) eventCount(t *testing.T, et model.EventType) int {
	t.Helper()
	logs, err := f.store.EventLogs().List(context.Background(), model.EventLogFilter{EventType: et})
	require.NoError(t, err)
	return len(logs)
}

func TestSendMessageDispatchesOnce(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()

	m2 := f.send(t, f.alice, f.bob, "hi", nil)

	notes, err := f.store.Notifications().ListByUser(ctx, f.bob.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationMessageReceived, notes[0].Type)
	require.NotNil(t, notes[0].MessageID)
	assert.Equal(t, m2.ID, *notes[0].MessageID)
	assert.Equal(t, "New message from alice", notes[0].Title)

	logs, err := f.store.EventLogs().List(ctx, model.EventLogFilter{EventType: model.EventNotificationSent})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].RelatedUserID)
	assert.Equal(t, f.bob.ID, *logs[0].RelatedUserID)
	assert.Equal(t, m2.ID.String(), logs[0].Metadata["message_id"])
	assert.Equal(t, f.alice.ID.String(), logs[0].Metadata["sender_id"])
	assert.Equal(t, f.bob.ID.String(), logs[0].Metadata["recipient_id"])
	assert.Equal(t, "subject", logs[0].Metadata["subject"])

	pending, err := f.store.Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OutboxNotificationCreated, pending[0].EventType)
}

func TestEditDoesNotNotify(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	_, err := f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{Content: strPtr("hello")})
	require.NoError(t, err)
	_, err = f.svc.MarkRead(ctx, actor(f.bob), m.ID)
	require.NoError(t, err)

	n, err := f.store.Notifications().CountUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.eventCount(t, model.EventNotificationSent))
}

func TestEditContentRecordsHistory(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m1 := f.send(t, f.alice, f.bob, "hi", nil)

	edited, err := f.svc.EditMessage(ctx, actor(f.alice), m1.ID, model.MessageEdit{Content: strPtr("hello")})
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello", edited.Content)

	stored, err := f.store.Messages().Get(ctx, m1.ID)
	require.NoError(t, err)
	assert.True(t, stored.Edited)
	assert.Equal(t, "hello", stored.Content)

	hist, err := f.svc.ListHistory(ctx, actor(f.bob), m1.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0].OldContent)
	assert.Equal(t, f.alice.ID, hist[0].EditedBy)
	assert.Equal(t, 1, f.eventCount(t, model.EventMessageEdited))
	assert.Equal(t, 1.0, counterValue(t, f.m.HistorySnapshots))
	assert.Equal(t, 1.0, counterValue(t, f.m.EventLogsAppended.WithLabelValues("message_edited")))
}

func TestEditSubjectOnly(t *testing.T) {
	t.Run("content policy", func(t *testing.T) {
		f := newFixture(t, history.PolicyContent)
		ctx := context.Background()
		m := f.send(t, f.alice, f.bob, "hi", nil)

		edited, err := f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{Subject: strPtr("renamed")})
		require.NoError(t, err)
		assert.Equal(t, "renamed", edited.Subject)
		assert.False(t, edited.Edited)

		hist, err := f.store.Histories().ListByMessage(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, hist)
		assert.Equal(t, 1, f.eventCount(t, model.EventMessageEdited))
	})

	t.Run("content or subject policy", func(t *testing.T) {
		f := newFixture(t, history.PolicyContentOrSubject)
		ctx := context.Background()
		m := f.send(t, f.alice, f.bob, "hi", nil)

		edited, err := f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{Subject: strPtr("renamed")})
		require.NoError(t, err)
		assert.True(t, edited.Edited)

		hist, err := f.store.Histories().ListByMessage(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, "subject", hist[0].OldSubject)
	})
}

func TestNoOpEditWritesNothing(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	out, err := f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{Content: strPtr("hi"), Subject: strPtr("subject")})
	require.NoError(t, err)
	assert.False(t, out.Edited)
	assert.Zero(t, f.eventCount(t, model.EventMessageEdited))
}

func TestEditPermissionsAndValidation(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	_, err := f.svc.EditMessage(ctx, actor(f.bob), m.ID, model.MessageEdit{Content: strPtr("hijacked")})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.EditMessage(ctx, actor(f.alice), uuid.New(), model.MessageEdit{Content: strPtr("x")})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	stored, err := f.store.Messages().Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Content)
}

func TestEditRollsBackOnEventLogFailure(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	f.store.InjectFault("event_logs.create", errors.New("disk full"))
	_, err := f.svc.EditMessage(ctx, actor(f.alice), m.ID, model.MessageEdit{Content: strPtr("hello")})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransaction))
	f.store.InjectFault("event_logs.create", nil)

	stored, err := f.store.Messages().Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Content)
	assert.False(t, stored.Edited)

	hist, err := f.store.Histories().ListByMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	// counters follow the rolled back rows
	assert.Zero(t, counterValue(t, f.m.HistorySnapshots))
	assert.Zero(t, counterValue(t, f.m.EventLogsAppended.WithLabelValues("message_edited")))
}

func TestSendRollsBackOnNotificationFailure(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()

	f.store.InjectFault("notifications.create", errors.New("connection reset"))
	_, err := f.svc.SendMessage(ctx, actor(f.alice), model.MessageInput{ReceiverID: f.bob.ID, Content: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.ErrTransaction))

	n, err := f.store.Messages().CountUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.eventCount(t, model.EventNotificationSent))
	assert.Zero(t, counterValue(t, f.m.NotificationsCreated.WithLabelValues(string(model.NotificationMessageReceived))))
	assert.Zero(t, counterValue(t, f.m.EventLogsAppended.WithLabelValues("notification_sent")))

	f.send(t, f.alice, f.bob, "hi", nil)
	assert.Equal(t, 1.0, counterValue(t, f.m.NotificationsCreated.WithLabelValues(string(model.NotificationMessageReceived))))
	assert.Equal(t, 1.0, counterValue(t, f.m.EventLogsAppended.WithLabelValues("notification_sent")))
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, actor(f.alice), model.MessageInput{ReceiverID: f.bob.ID, Content: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.SendMessage(ctx, actor(f.alice), model.MessageInput{ReceiverID: uuid.New(), Content: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	missing := uuid.New()
	_, err = f.svc.SendMessage(ctx, actor(f.alice), model.MessageInput{ReceiverID: f.bob.ID, ParentID: &missing, Content: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	private := f.send(t, f.bob, f.carol, "secret", nil)
	_, err = f.svc.SendMessage(ctx, actor(f.alice), model.MessageInput{ReceiverID: f.bob.ID, ParentID: &private.ID, Content: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	_, err := f.svc.MarkRead(ctx, actor(f.alice), m.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	count, err := f.svc.UnreadCountFor(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	read, err := f.svc.MarkRead(ctx, actor(f.bob), m.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = f.svc.MarkRead(ctx, actor(f.bob), m.ID)
	require.NoError(t, err)

	count, err = f.svc.UnreadCountFor(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnreadForOrdersNewestFirst(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	first := f.send(t, f.alice, f.bob, "first", nil)
	second := f.send(t, f.carol, f.bob, "second", nil)
	f.send(t, f.bob, f.alice, "outgoing", nil)

	unread, err := f.svc.UnreadFor(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, second.ID, unread[0].ID)
	assert.Equal(t, "carol", unread[0].SenderUsername)
	assert.Equal(t, first.ID, unread[1].ID)

	count, err := f.svc.UnreadCountFor(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(unread)), count)
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	root := f.send(t, f.alice, f.bob, "root", nil)
	reply := f.send(t, f.bob, f.alice, "reply", &root.ID)
	_, err := f.svc.EditMessage(ctx, actor(f.alice), root.ID, model.MessageEdit{Content: strPtr("root v2")})
	require.NoError(t, err)

	_, err = f.svc.DeleteMessage(ctx, actor(f.bob), root.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.DeleteMessage(ctx, actor(f.alice), root.ID)
	require.NoError(t, err)

	_, err = f.store.Messages().Get(ctx, root.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	hist, err := f.store.Histories().ListByMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	notes, err := f.store.Notifications().ListByUser(ctx, f.bob.ID, false, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)

	orphan, err := f.store.Messages().Get(ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.ParentID)
}

func TestModeratorCanDelete(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	m := f.send(t, f.alice, f.bob, "spam", nil)

	_, err := f.svc.DeleteMessage(context.Background(), actor(f.carol), m.ID)
	require.NoError(t, err)
}

func TestGetMessageParticipantsOnly(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	m := f.send(t, f.alice, f.bob, "hi", nil)

	got, err := f.svc.GetMessage(ctx, actor(f.bob), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = f.svc.GetMessage(ctx, actor(f.carol), m.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestThreadFromAnyNode(t *testing.T) {
	f := newFixture(t, history.PolicyContent)
	ctx := context.Background()
	root := f.send(t, f.alice, f.bob, "root", nil)
	r1 := f.send(t, f.bob, f.alice, "r1", &root.ID)
	r2 := f.send(t, f.alice, f.bob, "r2", &root.ID)
	r11 := f.send(t, f.alice, f.bob, "r1.1", &r1.ID)

	tree, err := f.svc.Thread(ctx, actor(f.bob), r11.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, tree.Message.ID)
	assert.Equal(t, 4, tree.Size())
	require.Len(t, tree.Children, 2)
	assert.Equal(t, r1.ID, tree.Children[0].Message.ID)
	assert.Equal(t, r2.ID, tree.Children[1].Message.ID)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, r11.ID, tree.Children[0].Children[0].Message.ID)

	again, err := f.svc.Thread(ctx, actor(f.bob), root.ID)
	require.NoError(t, err)
	assert.Equal(t, tree, again)
}
