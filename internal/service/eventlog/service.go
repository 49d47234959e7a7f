package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
}

func NewService(store repository.Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// Append writes one entry through repo, which is expected to be bound to
// the caller's unit of work.
func (s *Service) Append(ctx context.Context, repo repository.EventLogRepository, eventType model.EventType, relatedUserID *uuid.UUID, description string, metadata model.JSONMap) (*model.EventLog, error) {
	if !eventType.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown event type %q", eventType), nil)
	}
	if metadata == nil {
		metadata = model.JSONMap{}
	}

	log := &model.EventLog{
		ID:            uuid.New(),
		EventType:     eventType,
		RelatedUserID: relatedUserID,
		Description:   description,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return log, nil
}

// Observe counts entries of a committed unit of work. Append does not
// count, since the unit of work may still roll back.
func (s *Service) Observe(types ...model.EventType) {
	for _, t := range types {
		s.metrics.EventLogsAppended.WithLabelValues(string(t)).Inc()
	}
}

// List is the admin audit read.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.EventLogFilter) ([]*model.EventLog, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can read the event log")
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown event type %q", filter.EventType), nil)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := s.store.EventLogs().List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return logs, nil
}
