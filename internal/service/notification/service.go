package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	store   repository.Store
	events  *eventlog.Service
	metrics *metrics.Metrics
}

func NewService(store repository.Store, events *eventlog.Service, m *metrics.Metrics) *Service {
	return &Service{store: store, events: events, metrics: m}
}

// MessageCreated is the dispatcher step of a send. It runs once per
// committed creation inside the sender's unit of work: one notification
// for the receiver, its outbox hand-off row and one notification_sent
// event.
func (s *Service) MessageCreated(ctx context.Context, tx repository.Repositories, msg *model.Message, sender *model.User) (*model.Notification, error) {
	now := time.Now().UTC()
	messageID := msg.ID
	n := &model.Notification{
		ID:          uuid.New(),
		UserID:      msg.ReceiverID,
		Type:        model.NotificationMessageReceived,
		MessageID:   &messageID,
		Title:       fmt.Sprintf("New message from %s", sender.Username),
		Description: describe(sender, msg),
		CreatedAt:   now,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if err := s.enqueue(ctx, tx.Outbox(), n); err != nil {
		return nil, err
	}

	recipient := msg.ReceiverID
	_, err := s.events.Append(ctx, tx.EventLogs(), model.EventNotificationSent, &recipient,
		fmt.Sprintf("Notification sent to user %s for a message from %s", recipient, sender.Username),
		model.JSONMap{
			"message_id":   msg.ID.String(),
			"sender_id":    msg.SenderID.String(),
			"subject":      msg.Subject,
			"recipient_id": recipient.String(),
		})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Observe counts a notification, and its notification_sent entry, after
// the send's unit of work has committed.
func (s *Service) Observe(n *model.Notification) {
	if n == nil {
		return
	}
	s.metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.events.Observe(model.EventNotificationSent)
}

func describe(sender *model.User, msg *model.Message) string {
	if msg.Subject == "" {
		return fmt.Sprintf("%s sent you a message", sender.Username)
	}
	return fmt.Sprintf("%s sent you a message: %s", sender.Username, msg.Subject)
}

func (s *Service) enqueue(ctx context.Context, repo repository.OutboxRepository, n *model.Notification) error {
	payload, err := json.Marshal(model.NotificationEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		MessageID:      n.MessageID,
		Title:          n.Title,
		Description:    n.Description,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification event: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.OutboxNotificationCreated,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.CreatedAt,
	}
	if err := repo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// MarkRead moves a notification from unread to read. Only the recipient may
// do so; repeating it keeps the first read_at.
func (s *Service) MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Notification, error) {
	var out *model.Notification
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		n, err := tx.Notifications().Get(ctx, id)
		if err != nil {
			return err
		}
		if n.UserID != actor.ID {
			return apperrors.Forbidden("only the recipient can mark a notification as read")
		}
		if !n.Read {
			now := time.Now().UTC()
			if err := tx.Notifications().MarkRead(ctx, id, now); err != nil {
				return err
			}
			n.Read = true
			n.ReadAt = &now
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, apperrors.AsTransaction(err)
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.store.Notifications().ListByUser(ctx, actor.ID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor model.Actor) (int64, error) {
	n, err := s.store.Notifications().CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}
