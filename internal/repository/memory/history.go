package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type historyRepository struct {
	h *handle
}

func (r *historyRepository) Create(ctx context.Context, history *model.MessageHistory) error {
	return r.h.write("histories.create", func(st *state) error {
		if _, ok := st.messages.rows[history.MessageID]; !ok {
			return apperrors.NotFound("message", nil)
		}
		st.histories.rows[history.ID] = *history
		st.histories.seq[history.ID] = st.nextSeq()
		return nil
	})
}

func (r *historyRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*model.MessageHistory, error) {
	var out []*model.MessageHistory
	err := r.h.read("histories.list_by_message", func(st *state) error {
		for _, h := range st.histories.rows {
			if h.MessageID == messageID {
				h := h
				out = append(out, &h)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].EditedAt.Equal(out[j].EditedAt) {
				return out[i].EditedAt.After(out[j].EditedAt)
			}
			return st.histories.seq[out[i].ID] > st.histories.seq[out[j].ID]
		})
		return nil
	})
	return out, err
}

func (r *historyRepository) DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	ids := idSet(messageIDs)
	var n int64
	err := r.h.write("histories.delete_by_messages", func(st *state) error {
		for id, h := range st.histories.rows {
			if _, ok := ids[h.MessageID]; ok {
				st.histories.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}
