package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type messageRepository struct {
	BaseRepository
}

const messageColumns = `id, sender_id, receiver_id, parent_id, subject, content, is_read, edited, created_at, updated_at`

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.exec(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.ParentID,
		msg.Subject,
		msg.Content,
		msg.Read,
		msg.Edited,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return err
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	if err := r.get(ctx, "message", &msg, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 FOR UPDATE`
	if err := r.get(ctx, "message", &msg, query, id); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *model.Message) error {
	query := `
		UPDATE messages SET
			parent_id = $1,
			subject = $2,
			content = $3,
			is_read = $4,
			edited = $5,
			updated_at = $6
		WHERE id = $7
	`
	return r.execOne(ctx, "message", query,
		msg.ParentID,
		msg.Subject,
		msg.Content,
		msg.Read,
		msg.Edited,
		msg.UpdatedAt,
		msg.ID,
	)
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
}

func (r *messageRepository) DeleteBySender(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.exec(ctx, `DELETE FROM messages WHERE sender_id = $1`, userID)
}

func (r *messageRepository) DeleteByReceiver(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.exec(ctx, `DELETE FROM messages WHERE receiver_id = $1`, userID)
}

func (r *messageRepository) ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at ASC
	`
	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list message ids: %w", err)
	}
	return ids, nil
}

func (r *messageRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE parent_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var msgs []*model.Message
	if err := sqlx.SelectContext(ctx, r.db, &msgs, query, parentID); err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) DetachReplies(ctx context.Context, parentIDs []uuid.UUID, except uuid.UUID) (int64, error) {
	if len(parentIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE messages SET parent_id = NULL, updated_at = NOW()
		WHERE parent_id = ANY($1::uuid[])
		AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR (sender_id <> $2 AND receiver_id <> $2))
	`
	return r.exec(ctx, query, uuidArray(parentIDs), except)
}

func (r *messageRepository) ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 50
	}
	var msgs []*model.Message
	if err := sqlx.SelectContext(ctx, r.db, &msgs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list received messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) UnreadFor(ctx context.Context, userID uuid.UUID) ([]*model.UnreadMessage, error) {
	query := `
		SELECT m.id, m.sender_id, u.username AS sender_username, u.email AS sender_email,
			m.subject, m.content, m.created_at, m.is_read
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.receiver_id = $1 AND m.is_read = FALSE
		ORDER BY m.created_at DESC
	`
	var msgs []*model.UnreadMessage
	if err := sqlx.SelectContext(ctx, r.db, &msgs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE`
	if err := sqlx.GetContext(ctx, r.db, &n, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}
