package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/messaging-api/internal/repository"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

// BaseRepository provides common functionality for all repositories. db is
// either the pool or the transaction of the surrounding unit of work.
type BaseRepository struct {
	db sqlx.ExtContext
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db sqlx.ExtContext) BaseRepository {
	return BaseRepository{db: db}
}

func (r *BaseRepository) get(ctx context.Context, resource string, dest interface{}, query string, args ...interface{}) error {
	if err := sqlx.GetContext(ctx, r.db, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound(resource, nil)
		}
		return fmt.Errorf("failed to get %s: %w", resource, err)
	}
	return nil
}

func (r *BaseRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// execOne is exec for statements that must touch exactly one row.
func (r *BaseRepository) execOne(ctx context.Context, resource, query string, args ...interface{}) error {
	rows, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}

// translate maps constraint violations onto AppErrors and leaves every
// other driver error as is.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return apperrors.Conflict(fmt.Sprintf("duplicate value violates %s", pqErr.Constraint))
	case "23503":
		return apperrors.NotFound("referenced row", err)
	}
	return err
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

type repos struct {
	base BaseRepository
}

func (r repos) Users() repository.UserRepository                 { return &userRepository{r.base} }
func (r repos) Messages() repository.MessageRepository           { return &messageRepository{r.base} }
func (r repos) Histories() repository.HistoryRepository          { return &historyRepository{r.base} }
func (r repos) Notifications() repository.NotificationRepository { return &notificationRepository{r.base} }
func (r repos) EventLogs() repository.EventLogRepository         { return &eventLogRepository{r.base} }
func (r repos) Outbox() repository.OutboxRepository              { return &outboxRepository{r.base} }

// Store is the Postgres implementation of repository.Store.
type Store struct {
	repos
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{repos: repos{base: NewBaseRepository(db)}, db: db}
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repos{base: NewBaseRepository(tx)}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
