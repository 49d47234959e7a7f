package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type notificationRepository struct {
	h *handle
}

func cloneNotification(n model.Notification) *model.Notification {
	n.MessageID = copyUUID(n.MessageID)
	if n.ReadAt != nil {
		t := *n.ReadAt
		n.ReadAt = &t
	}
	return &n
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.h.write("notifications.create", func(st *state) error {
		if _, ok := st.users.rows[notification.UserID]; !ok {
			return apperrors.NotFound("user", nil)
		}
		st.notifications.rows[notification.ID] = *cloneNotification(*notification)
		st.notifications.seq[notification.ID] = st.nextSeq()
		return nil
	})
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var out *model.Notification
	err := r.h.read("notifications.get", func(st *state) error {
		n, ok := st.notifications.rows[id]
		if !ok {
			return apperrors.NotFound("notification", nil)
		}
		out = cloneNotification(n)
		return nil
	})
	return out, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	return r.h.write("notifications.mark_read", func(st *state) error {
		n, ok := st.notifications.rows[id]
		if !ok {
			return apperrors.NotFound("notification", nil)
		}
		if n.Read {
			return nil
		}
		n.Read = true
		n.ReadAt = &readAt
		st.notifications.rows[id] = n
		return nil
	})
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	var out []*model.Notification
	err := r.h.read("notifications.list_by_user", func(st *state) error {
		for _, n := range st.notifications.rows {
			if n.UserID != userID || (unreadOnly && n.Read) {
				continue
			}
			out = append(out, cloneNotification(n))
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return st.notifications.seq[out[i].ID] > st.notifications.seq[out[j].ID]
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.h.read("notifications.count_unread", func(st *state) error {
		for _, row := range st.notifications.rows {
			if row.UserID == userID && !row.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *notificationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.h.write("notifications.delete_by_user", func(st *state) error {
		for id, row := range st.notifications.rows {
			if row.UserID == userID {
				st.notifications.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *notificationRepository) DeleteByMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	ids := idSet(messageIDs)
	var n int64
	err := r.h.write("notifications.delete_by_messages", func(st *state) error {
		for id, row := range st.notifications.rows {
			if row.MessageID == nil {
				continue
			}
			if _, ok := ids[*row.MessageID]; ok {
				st.notifications.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}
