package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type historyRepository struct {
	BaseRepository
}

func (r *historyRepository) Create(ctx context.Context, history *model.MessageHistory) error {
	query := `
		INSERT INTO message_histories (id, message_id, old_content, old_subject, edited_by, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.exec(ctx, query,
		history.ID,
		history.MessageID,
		history.OldContent,
		history.OldSubject,
		history.EditedBy,
		history.EditedAt,
	)
	return err
}

func (r *historyRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*model.MessageHistory, error) {
	query := `
		SELECT id, message_id, old_content, old_subject, edited_by, edited_at
		FROM message_histories
		WHERE message_id = $1
		ORDER BY edited_at DESC
	`
	var out []*model.MessageHistory
	if err := sqlx.SelectContext(ctx, r.db, &out, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to list message history: %w", err)
	}
	return out, nil
}

func (r *historyRepository) DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	return r.exec(ctx, `DELETE FROM message_histories WHERE message_id = ANY($1::uuid[])`, uuidArray(messageIDs))
}
