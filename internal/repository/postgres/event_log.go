package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type eventLogRepository struct {
	BaseRepository
}

func (r *eventLogRepository) Create(ctx context.Context, log *model.EventLog) error {
	query := `
		INSERT INTO event_logs (id, event_type, related_user_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.exec(ctx, query,
		log.ID,
		log.EventType,
		log.RelatedUserID,
		log.Description,
		log.Metadata,
		log.CreatedAt,
	)
	return err
}

func (r *eventLogRepository) List(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLog, error) {
	query := `
		SELECT id, event_type, related_user_id, description, metadata, created_at
		FROM event_logs WHERE 1=1
	`
	var args []interface{}

	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.RelatedUserID != nil {
		args = append(args, *filter.RelatedUserID)
		query += fmt.Sprintf(" AND related_user_id = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var logs []*model.EventLog
	if err := sqlx.SelectContext(ctx, r.db, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list event logs: %w", err)
	}
	return logs, nil
}
