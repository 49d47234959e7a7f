package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type userRepository struct {
	h *handle
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.h.write("users.create", func(st *state) error {
		for _, u := range st.users.rows {
			if strings.EqualFold(u.Username, user.Username) {
				return apperrors.Conflict("username already taken")
			}
		}
		st.users.rows[user.ID] = *user
		st.users.seq[user.ID] = st.nextSeq()
		return nil
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var out *model.User
	err := r.h.read("users.get", func(st *state) error {
		u, ok := st.users.rows[id]
		if !ok {
			return apperrors.NotFound("user", nil)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var out *model.User
	err := r.h.read("users.get_by_username", func(st *state) error {
		for _, u := range st.users.rows {
			if strings.EqualFold(u.Username, username) {
				u := u
				out = &u
				return nil
			}
		}
		return apperrors.NotFound("user", nil)
	})
	return out, err
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.h.write("users.update", func(st *state) error {
		if _, ok := st.users.rows[user.ID]; !ok {
			return apperrors.NotFound("user", nil)
		}
		for id, u := range st.users.rows {
			if id != user.ID && strings.EqualFold(u.Username, user.Username) {
				return apperrors.Conflict("username already taken")
			}
		}
		st.users.rows[user.ID] = *user
		return nil
	})
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.h.write("users.delete", func(st *state) error {
		if _, ok := st.users.rows[id]; !ok {
			return apperrors.NotFound("user", nil)
		}
		st.users.remove(id)
		return nil
	})
}
