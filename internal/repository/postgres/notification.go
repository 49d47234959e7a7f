package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type notificationRepository struct {
	BaseRepository
}

const notificationColumns = `id, user_id, notification_type, message_id, title, description, is_read, created_at, read_at`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.exec(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.MessageID,
		n.Title,
		n.Description,
		n.Read,
		n.CreatedAt,
		n.ReadAt,
	)
	return err
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	if err := r.get(ctx, "notification", &n, query, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead leaves read_at untouched on an already read row.
func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	query := `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $1)
		WHERE id = $2
	`
	return r.execOne(ctx, "notification", query, readAt, id)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`
	if limit <= 0 {
		limit = 50
	}

	var out []*model.Notification
	if err := sqlx.SelectContext(ctx, r.db, &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := sqlx.GetContext(ctx, r.db, &n, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
}

func (r *notificationRepository) DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	return r.exec(ctx, `DELETE FROM notifications WHERE message_id = ANY($1::uuid[])`, uuidArray(messageIDs))
}
