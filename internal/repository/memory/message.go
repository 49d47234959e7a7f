package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type messageRepository struct {
	h *handle
}

func cloneMessage(m model.Message) *model.Message {
	m.ParentID = copyUUID(m.ParentID)
	return &m
}

// sortedMessages returns copies ordered by created_at, newest first when
// desc is set. Insertion order breaks ties.
func sortedMessages(st *state, keep func(m *model.Message) bool, desc bool) []*model.Message {
	var out []*model.Message
	for _, m := range st.messages.rows {
		m := m
		if keep(&m) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return st.messages.seq[a.ID] > st.messages.seq[b.ID]
		}
		return st.messages.seq[a.ID] < st.messages.seq[b.ID]
	})
	return out
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.h.write("messages.create", func(st *state) error {
		if _, ok := st.users.rows[msg.SenderID]; !ok {
			return apperrors.NotFound("sender", nil)
		}
		if _, ok := st.users.rows[msg.ReceiverID]; !ok {
			return apperrors.NotFound("receiver", nil)
		}
		if msg.ParentID != nil {
			if _, ok := st.messages.rows[*msg.ParentID]; !ok {
				return apperrors.NotFound("parent message", nil)
			}
		}
		st.messages.rows[msg.ID] = *cloneMessage(*msg)
		st.messages.seq[msg.ID] = st.nextSeq()
		return nil
	})
}

func (r *messageRepository) get(op string, id uuid.UUID) (*model.Message, error) {
	var out *model.Message
	err := r.h.read(op, func(st *state) error {
		m, ok := st.messages.rows[id]
		if !ok {
			return apperrors.NotFound("message", nil)
		}
		out = cloneMessage(m)
		return nil
	})
	return out, err
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return r.get("messages.get", id)
}

// GetForUpdate needs no extra locking: writers are already serialized.
func (r *messageRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return r.get("messages.get_for_update", id)
}

func (r *messageRepository) Update(ctx context.Context, msg *model.Message) error {
	return r.h.write("messages.update", func(st *state) error {
		if _, ok := st.messages.rows[msg.ID]; !ok {
			return apperrors.NotFound("message", nil)
		}
		st.messages.rows[msg.ID] = *cloneMessage(*msg)
		return nil
	})
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.h.write("messages.delete", func(st *state) error {
		if _, ok := st.messages.rows[id]; ok {
			st.messages.remove(id)
			n = 1
		}
		return nil
	})
	return n, err
}

func (r *messageRepository) deleteWhere(op string, match func(m model.Message) bool) (int64, error) {
	var n int64
	err := r.h.write(op, func(st *state) error {
		for id, m := range st.messages.rows {
			if match(m) {
				st.messages.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *messageRepository) DeleteBySender(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.deleteWhere("messages.delete_by_sender", func(m model.Message) bool { return m.SenderID == userID })
}

func (r *messageRepository) DeleteByReceiver(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.deleteWhere("messages.delete_by_receiver", func(m model.Message) bool { return m.ReceiverID == userID })
}

func (r *messageRepository) ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.h.read("messages.list_ids_by_participant", func(st *state) error {
		for _, m := range sortedMessages(st, func(m *model.Message) bool { return m.IsParticipant(userID) }, false) {
			ids = append(ids, m.ID)
		}
		return nil
	})
	return ids, err
}

func (r *messageRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Message, error) {
	var out []*model.Message
	err := r.h.read("messages.list_children", func(st *state) error {
		out = sortedMessages(st, func(m *model.Message) bool {
			return m.ParentID != nil && *m.ParentID == parentID
		}, false)
		return nil
	})
	return out, err
}

func (r *messageRepository) DetachReplies(ctx context.Context, parentIDs []uuid.UUID, except uuid.UUID) (int64, error) {
	parents := idSet(parentIDs)
	var n int64
	err := r.h.write("messages.detach_replies", func(st *state) error {
		for id, m := range st.messages.rows {
			if m.ParentID == nil {
				continue
			}
			if _, ok := parents[*m.ParentID]; !ok {
				continue
			}
			if except != uuid.Nil && m.IsParticipant(except) {
				continue
			}
			m.ParentID = nil
			st.messages.rows[id] = m
			n++
		}
		return nil
	})
	return n, err
}

func (r *messageRepository) ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Message, error) {
	var out []*model.Message
	err := r.h.read("messages.list_received", func(st *state) error {
		out = sortedMessages(st, func(m *model.Message) bool { return m.ReceiverID == userID }, true)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *messageRepository) UnreadFor(ctx context.Context, userID uuid.UUID) ([]*model.UnreadMessage, error) {
	var out []*model.UnreadMessage
	err := r.h.read("messages.unread_for", func(st *state) error {
		msgs := sortedMessages(st, func(m *model.Message) bool {
			return m.ReceiverID == userID && !m.Read
		}, true)
		out = make([]*model.UnreadMessage, 0, len(msgs))
		for _, m := range msgs {
			sender := st.users.rows[m.SenderID]
			out = append(out, &model.UnreadMessage{
				ID:             m.ID,
				SenderID:       m.SenderID,
				SenderUsername: sender.Username,
				SenderEmail:    sender.Email,
				Subject:        m.Subject,
				Content:        m.Content,
				CreatedAt:      m.CreatedAt,
				Read:           m.Read,
			})
		}
		return nil
	})
	return out, err
}

func (r *messageRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.h.read("messages.count_unread", func(st *state) error {
		for _, m := range st.messages.rows {
			if m.ReceiverID == userID && !m.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}
