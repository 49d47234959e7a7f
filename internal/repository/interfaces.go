package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
)

// All repository interfaces in one file. Lookups of a missing row return a
// NotFound AppError.
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		// GetForUpdate locks the row until the surrounding unit of work ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Message, error)
		Update(ctx context.Context, msg *model.Message) error
		Delete(ctx context.Context, id uuid.UUID) (int64, error)
		DeleteBySender(ctx context.Context, userID uuid.UUID) (int64, error)
		DeleteByReceiver(ctx context.Context, userID uuid.UUID) (int64, error)
		ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
		// ListChildren returns direct replies ordered by created_at ascending.
		ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Message, error)
		// DetachReplies clears parent_id on replies to parentIDs, skipping
		// messages that except sent or received. uuid.Nil skips nothing.
		DetachReplies(ctx context.Context, parentIDs []uuid.UUID, except uuid.UUID) (int64, error)
		ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Message, error)
		UnreadFor(ctx context.Context, userID uuid.UUID) ([]*model.UnreadMessage, error)
		CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	}

	HistoryRepository interface {
		Create(ctx context.Context, history *model.MessageHistory) error
		// ListByMessage returns snapshots newest first.
		ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*model.MessageHistory, error)
		DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error
		ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error)
		CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
		DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
		DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error)
	}

	EventLogRepository interface {
		Create(ctx context.Context, log *model.EventLog) error
		List(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLog, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records a delivery failure. The row stays pending
		// unless final is set.
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Repositories groups the repositories bound to one connection or
	// one transaction.
	Repositories interface {
		Users() UserRepository
		Messages() MessageRepository
		Histories() HistoryRepository
		Notifications() NotificationRepository
		EventLogs() EventLogRepository
		Outbox() OutboxRepository
	}

	// Store is the transactional store the pipeline runs against. fn's
	// writes through tx commit together or not at all.
	Store interface {
		Repositories
		WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
