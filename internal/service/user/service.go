package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/service/cleanup"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/security"
)

type Service struct {
	store   repository.Store
	hasher  security.PasswordHasher
	events  *eventlog.Service
	cleanup *cleanup.Coordinator
	logger  *logger.Logger
}

func NewService(store repository.Store, hasher security.PasswordHasher, events *eventlog.Service,
	cleaner *cleanup.Coordinator, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		events:  events,
		cleanup: cleaner,
		logger:  log,
	}
}

func profile(u *model.User) model.JSONMap {
	return model.JSONMap{"username": u.Username, "email": u.Email}
}

// CreateUser registers a user. Only an admin may create a user with a role
// other than "user"; actor is nil for self registration.
func (s *Service) CreateUser(ctx context.Context, actor *model.Actor, req model.CreateUserRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && (actor == nil || !actor.IsAdmin()) {
		return nil, apperrors.Forbidden("only admins can assign elevated roles")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         role,
		PasswordHash: hash,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		id := user.ID
		_, err := s.events.Append(ctx, tx.EventLogs(), model.EventUserCreated, &id,
			fmt.Sprintf("User '%s' was created", user.Username), profile(user))
		return err
	})
	if err != nil {
		return nil, apperrors.AsTransaction(err)
	}

	s.events.Observe(model.EventUserCreated)
	s.logger.Info("user created", "user_id", user.ID.String(), "username", user.Username)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, apperrors.AsTransaction(err)
	}
	return user, nil
}

// UpdateUser changes a profile. Users may edit themselves; admins may edit
// anyone and are the only ones who can change a role.
func (s *Service) UpdateUser(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateUserRequest) (*model.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("can only update your own profile")
	}
	if req.Role != nil && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can change roles")
	}

	var out *model.User
	changed := false
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		user, err := tx.Users().Get(ctx, id)
		if err != nil {
			return err
		}

		if req.Username != nil && strings.TrimSpace(*req.Username) != user.Username {
			user.Username = strings.TrimSpace(*req.Username)
			changed = true
		}
		if req.Email != nil && strings.ToLower(strings.TrimSpace(*req.Email)) != user.Email {
			user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
			changed = true
		}
		if req.Role != nil && *req.Role != user.Role {
			user.Role = *req.Role
			changed = true
		}
		out = user
		if !changed {
			return nil
		}

		user.UpdatedAt = time.Now().UTC()
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		uid := user.ID
		_, err = s.events.Append(ctx, tx.EventLogs(), model.EventUserUpdated, &uid,
			fmt.Sprintf("User '%s' was updated", user.Username), profile(user))
		return err
	})
	if err != nil {
		return nil, apperrors.AsTransaction(err)
	}
	if changed {
		s.events.Observe(model.EventUserUpdated)
	}
	return out, nil
}

// DeleteUser removes a user and runs the cascade cleanup. Users may delete
// themselves; admins may delete anyone.
func (s *Service) DeleteUser(ctx context.Context, actor model.Actor, id uuid.UUID) (model.CleanupSummary, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return model.CleanupSummary{}, apperrors.Forbidden("can only delete your own account")
	}

	var sum model.CleanupSummary
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		user, err := tx.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		sum, err = s.cleanup.UserDeleted(ctx, tx, user)
		return err
	})
	if err != nil {
		return model.CleanupSummary{}, apperrors.AsTransaction(err)
	}

	s.cleanup.Observe(sum)
	s.logger.Info("user deleted",
		"user_id", id.String(),
		"total_deleted", sum.TotalDeleted(),
		"linked_notifications", sum.LinkedNotifications,
		"replies_detached", sum.RepliesDetached,
	)
	return sum, nil
}
