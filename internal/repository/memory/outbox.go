package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type outboxRepository struct {
	h *handle
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return r.h.write("outbox.create", func(st *state) error {
		st.outbox.rows[event.ID] = *event
		st.outbox.seq[event.ID] = st.nextSeq()
		return nil
	})
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	err := r.h.read("outbox.get_pending", func(st *state) error {
		for _, e := range st.outbox.rows {
			if e.Status == model.OutboxStatusPending {
				e := e
				out = append(out, &e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return st.outbox.seq[out[i].ID] < st.outbox.seq[out[j].ID]
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.h.write("outbox.mark_processed", func(st *state) error {
		e, ok := st.outbox.rows[id]
		if !ok {
			return apperrors.NotFound("outbox event", nil)
		}
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.UpdatedAt = now
		e.ErrorMessage = nil
		st.outbox.rows[id] = e
		return nil
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	return r.h.write("outbox.mark_failed", func(st *state) error {
		e, ok := st.outbox.rows[id]
		if !ok {
			return apperrors.NotFound("outbox event", nil)
		}
		e.RetryCount++
		e.ErrorMessage = &errMsg
		e.UpdatedAt = time.Now().UTC()
		if final {
			e.Status = model.OutboxStatusFailed
		}
		st.outbox.rows[id] = e
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.h.write("outbox.delete_processed_before", func(st *state) error {
		for id, e := range st.outbox.rows {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				st.outbox.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}
