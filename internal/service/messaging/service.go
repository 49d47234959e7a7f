// Package messaging holds the message mutation entry points. Each one
// opens a single unit of work and runs its reactions in a fixed order:
// history snapshot, store write, notification dispatch, event log append.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	"github.com/jwalitptl/messaging-api/internal/service/history"
	"github.com/jwalitptl/messaging-api/internal/service/notification"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

const (
	maxSubjectLen     = 200
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

type Service struct {
	store    repository.Store
	recorder *history.Recorder
	notifier *notification.Service
	events   *eventlog.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewService(store repository.Store, recorder *history.Recorder, notifier *notification.Service,
	events *eventlog.Service, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		notifier: notifier,
		events:   events,
		metrics:  m,
		logger:   log,
	}
}

func (s *Service) fail(op string, err error) error {
	s.metrics.UnitOfWorkFailures.WithLabelValues(op).Inc()
	err = apperrors.AsTransaction(err)
	if apperrors.Is(err, apperrors.ErrTransaction) {
		s.logger.Error(err, "unit of work rolled back", "operation", op)
	}
	return err
}

func validateSubject(subject string) error {
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		return apperrors.BadRequest(fmt.Sprintf("subject must be at most %d characters", maxSubjectLen), nil)
	}
	return nil
}

// SendMessage creates a message from actor and dispatches the receiver's
// notification in the same unit of work.
func (s *Service) SendMessage(ctx context.Context, actor model.Actor, in model.MessageInput) (*model.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.BadRequest("content is required", nil)
	}
	if err := validateSubject(in.Subject); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &model.Message{
		Base:       model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SenderID:   actor.ID,
		ReceiverID: in.ReceiverID,
		ParentID:   in.ParentID,
		Subject:    in.Subject,
		Content:    in.Content,
	}

	var note *model.Notification
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		sender, err := tx.Users().Get(ctx, actor.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Users().Get(ctx, in.ReceiverID); err != nil {
			return apperrors.NotFound("receiver", err)
		}
		if in.ParentID != nil {
			parent, err := tx.Messages().Get(ctx, *in.ParentID)
			if err != nil {
				return apperrors.NotFound("parent message", err)
			}
			if !parent.IsParticipant(actor.ID) {
				return apperrors.Forbidden("can only reply within your own conversations")
			}
		}

		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}
		note, err = s.notifier.MessageCreated(ctx, tx, msg, sender)
		return err
	})
	if err != nil {
		return nil, s.fail("send_message", err)
	}

	s.metrics.MessagesSent.Inc()
	s.notifier.Observe(note)
	return msg, nil
}

// EditMessage applies a sender's edit. An edit that changes nothing writes
// nothing and returns the stored message.
func (s *Service) EditMessage(ctx context.Context, actor model.Actor, id uuid.UUID, edit model.MessageEdit) (*model.Message, error) {
	if edit.Subject == nil && edit.Content == nil {
		return nil, apperrors.BadRequest("nothing to update", nil)
	}
	if edit.Content != nil && strings.TrimSpace(*edit.Content) == "" {
		return nil, apperrors.BadRequest("content cannot be empty", nil)
	}
	if edit.Subject != nil {
		if err := validateSubject(*edit.Subject); err != nil {
			return nil, err
		}
	}

	var (
		out      *model.Message
		snapshot *model.MessageHistory
	)
	outcome := "noop"
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		stored, err := tx.Messages().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if stored.SenderID != actor.ID {
			return apperrors.Forbidden("only the sender can edit a message")
		}

		proposed := *stored
		if edit.Subject != nil {
			proposed.Subject = *edit.Subject
		}
		if edit.Content != nil {
			proposed.Content = *edit.Content
		}
		contentChanged := proposed.Content != stored.Content
		subjectChanged := proposed.Subject != stored.Subject
		if !contentChanged && !subjectChanged {
			out = stored
			return nil
		}
		proposed.UpdatedAt = time.Now().UTC()

		snapshot, err = s.recorder.Record(ctx, tx.Histories(), stored, &proposed, actor.ID)
		if err != nil {
			return err
		}
		if err := tx.Messages().Update(ctx, &proposed); err != nil {
			return err
		}

		meta := model.JSONMap{
			"message_id":      proposed.ID.String(),
			"receiver_id":     proposed.ReceiverID.String(),
			"content_changed": contentChanged,
			"subject_changed": subjectChanged,
			"history_policy":  string(s.recorder.Policy()),
		}
		if snapshot != nil {
			meta["history_id"] = snapshot.ID.String()
		}
		editor := actor.ID
		if _, err := s.events.Append(ctx, tx.EventLogs(), model.EventMessageEdited, &editor,
			fmt.Sprintf("Message %s was edited", proposed.ID), meta); err != nil {
			return err
		}

		out = &proposed
		outcome = "updated"
		return nil
	})
	if err != nil {
		return nil, s.fail("edit_message", err)
	}

	s.metrics.MessageEdits.WithLabelValues(outcome).Inc()
	if outcome == "updated" {
		s.recorder.Observe(snapshot)
		s.events.Observe(model.EventMessageEdited)
	}
	return out, nil
}

// MarkRead flips the read flag for the receiver. Marking twice is a no-op.
func (s *Service) MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	var out *model.Message
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		msg, err := tx.Messages().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if msg.ReceiverID != actor.ID {
			return apperrors.Forbidden("only the receiver can mark a message as read")
		}
		out = msg
		if msg.Read {
			return nil
		}
		msg.Read = true
		msg.UpdatedAt = time.Now().UTC()
		return tx.Messages().Update(ctx, msg)
	})
	if err != nil {
		return nil, s.fail("mark_read", err)
	}
	return out, nil
}

// DeleteMessage removes one message with its history and notifications.
// Replies to it become thread roots. The sender or staff may delete.
func (s *Service) DeleteMessage(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	var out *model.Message
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		msg, err := tx.Messages().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if msg.SenderID != actor.ID && !actor.IsStaff() {
			return apperrors.Forbidden("only the sender or a moderator can delete a message")
		}

		ids := []uuid.UUID{id}
		if _, err := tx.Histories().DeleteByMessages(ctx, ids); err != nil {
			return err
		}
		if _, err := tx.Notifications().DeleteByMessages(ctx, ids); err != nil {
			return err
		}
		if _, err := tx.Messages().DetachReplies(ctx, ids, uuid.Nil); err != nil {
			return err
		}
		if _, err := tx.Messages().Delete(ctx, id); err != nil {
			return err
		}
		out = msg
		return nil
	})
	if err != nil {
		return nil, s.fail("delete_message", err)
	}
	return out, nil
}

func (s *Service) participantMessage(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	msg, err := s.store.Messages().Get(ctx, id)
	if err != nil {
		return nil, apperrors.AsTransaction(err)
	}
	if !msg.IsParticipant(actor.ID) {
		return nil, apperrors.Forbidden("only participants can read a message")
	}
	return msg, nil
}

func (s *Service) GetMessage(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	return s.participantMessage(ctx, actor, id)
}

// ListHistory returns the snapshots of a message, newest first.
func (s *Service) ListHistory(ctx context.Context, actor model.Actor, id uuid.UUID) ([]*model.MessageHistory, error) {
	if _, err := s.participantMessage(ctx, actor, id); err != nil {
		return nil, err
	}
	list, err := s.store.Histories().ListByMessage(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// Inbox lists received messages, newest first.
func (s *Service) Inbox(ctx context.Context, actor model.Actor, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	list, err := s.store.Messages().ListReceived(ctx, actor.ID, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) UnreadFor(ctx context.Context, userID uuid.UUID) ([]*model.UnreadMessage, error) {
	list, err := s.store.Messages().UnreadFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) UnreadCountFor(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.Messages().CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

// Thread assembles the conversation containing id. The actor must take
// part in the requested message.
func (s *Service) Thread(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ThreadNode, error) {
	if _, err := s.participantMessage(ctx, actor, id); err != nil {
		return nil, err
	}
	tree, err := BuildThread(ctx, s.store.Messages(), id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrThreadIntegrity) {
			s.metrics.ThreadIntegrityFailures.Inc()
			s.logger.Warn("thread integrity check failed", "message_id", id.String(), "error", err.Error())
		}
		return nil, apperrors.AsTransaction(err)
	}
	return tree, nil
}
