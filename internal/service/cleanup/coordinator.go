// Package cleanup removes everything that hangs off a deleted user in one
// unit of work.
package cleanup

import (
	"context"
	"fmt"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

type Coordinator struct {
	events  *eventlog.Service
	metrics *metrics.Metrics
}

func NewCoordinator(events *eventlog.Service, m *metrics.Metrics) *Coordinator {
	return &Coordinator{events: events, metrics: m}
}

// UserDeleted runs the cascade for user through tx and deletes the user
// row. Histories and notifications go before the messages they reference,
// including other users' notifications about those messages. Replies by
// other users are kept and become thread roots.
func (c *Coordinator) UserDeleted(ctx context.Context, tx repository.Repositories, user *model.User) (model.CleanupSummary, error) {
	var sum model.CleanupSummary

	ids, err := tx.Messages().ListIDsByParticipant(ctx, user.ID)
	if err != nil {
		return sum, fmt.Errorf("failed to list messages of user: %w", err)
	}

	if sum.MessageHistories, err = tx.Histories().DeleteByMessages(ctx, ids); err != nil {
		return sum, fmt.Errorf("failed to delete message histories: %w", err)
	}
	if sum.Notifications, err = tx.Notifications().DeleteByUser(ctx, user.ID); err != nil {
		return sum, fmt.Errorf("failed to delete notifications: %w", err)
	}
	if sum.LinkedNotifications, err = tx.Notifications().DeleteByMessages(ctx, ids); err != nil {
		return sum, fmt.Errorf("failed to delete linked notifications: %w", err)
	}
	if sum.RepliesDetached, err = tx.Messages().DetachReplies(ctx, ids, user.ID); err != nil {
		return sum, fmt.Errorf("failed to detach replies: %w", err)
	}
	if sum.MessagesSent, err = tx.Messages().DeleteBySender(ctx, user.ID); err != nil {
		return sum, fmt.Errorf("failed to delete sent messages: %w", err)
	}
	if sum.MessagesReceived, err = tx.Messages().DeleteByReceiver(ctx, user.ID); err != nil {
		return sum, fmt.Errorf("failed to delete received messages: %w", err)
	}

	if err := tx.Users().Delete(ctx, user.ID); err != nil {
		return sum, fmt.Errorf("failed to delete user: %w", err)
	}

	// No related user: the entry outlives the row it describes.
	_, err = c.events.Append(ctx, tx.EventLogs(), model.EventUserDeleted, nil,
		fmt.Sprintf("User '%s' was deleted", user.Username),
		model.JSONMap{
			"user_id":              user.ID.String(),
			"username":             user.Username,
			"email":                user.Email,
			"message_histories":    sum.MessageHistories,
			"messages_sent":        sum.MessagesSent,
			"messages_received":    sum.MessagesReceived,
			"notifications":        sum.Notifications,
			"linked_notifications": sum.LinkedNotifications,
			"total_deleted":        sum.TotalDeleted(),
			"replies_detached":     sum.RepliesDetached,
		})
	if err != nil {
		return sum, err
	}

	return sum, nil
}

// Observe records the counts of a committed cleanup.
func (c *Coordinator) Observe(sum model.CleanupSummary) {
	c.metrics.CascadeRows.WithLabelValues("message_histories").Add(float64(sum.MessageHistories))
	c.metrics.CascadeRows.WithLabelValues("messages_sent").Add(float64(sum.MessagesSent))
	c.metrics.CascadeRows.WithLabelValues("messages_received").Add(float64(sum.MessagesReceived))
	c.metrics.CascadeRows.WithLabelValues("notifications").Add(float64(sum.Notifications))
	c.metrics.CascadeRows.WithLabelValues("linked_notifications").Add(float64(sum.LinkedNotifications))
	c.metrics.CascadeRows.WithLabelValues("replies_detached").Add(float64(sum.RepliesDetached))
	c.events.Observe(model.EventUserDeleted)
}
