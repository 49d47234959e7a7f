// Package memory is an in-process implementation of repository.Store.
// Writers are serialized; a transaction works on a copy of the state that
// replaces the live state only when fn succeeds.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
)

type table[T any] struct {
	rows map[uuid.UUID]T
	seq  map[uuid.UUID]int64
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[uuid.UUID]T), seq: make(map[uuid.UUID]int64)}
}

func (t table[T]) clone() table[T] {
	out := table[T]{
		rows: make(map[uuid.UUID]T, len(t.rows)),
		seq:  make(map[uuid.UUID]int64, len(t.seq)),
	}
	for k, v := range t.rows {
		out.rows[k] = v
	}
	for k, v := range t.seq {
		out.seq[k] = v
	}
	return out
}

func (t table[T]) remove(id uuid.UUID) {
	delete(t.rows, id)
	delete(t.seq, id)
}

type state struct {
	next          int64
	users         table[model.User]
	messages      table[model.Message]
	histories     table[model.MessageHistory]
	notifications table[model.Notification]
	eventLogs     table[model.EventLog]
	outbox        table[model.OutboxEvent]
}

func newState() *state {
	return &state{
		users:         newTable[model.User](),
		messages:      newTable[model.Message](),
		histories:     newTable[model.MessageHistory](),
		notifications: newTable[model.Notification](),
		eventLogs:     newTable[model.EventLog](),
		outbox:        newTable[model.OutboxEvent](),
	}
}

func (s *state) clone() *state {
	return &state{
		next:          s.next,
		users:         s.users.clone(),
		messages:      s.messages.clone(),
		histories:     s.histories.clone(),
		notifications: s.notifications.clone(),
		eventLogs:     s.eventLogs.clone(),
		outbox:        s.outbox.clone(),
	}
}

func (s *state) nextSeq() int64 {
	s.next++
	return s.next
}

// Store keeps every table in memory.
type Store struct {
	mu sync.RWMutex
	st *state

	faultMu sync.Mutex
	faults  map[string]error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), faults: make(map[string]error)}
}

// InjectFault makes the named operation (for example
// "notifications.create") fail with err until cleared with a nil err.
func (s *Store) InjectFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err, ok := s.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(ctx, &repos{h: &handle{store: s, st: working}}); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) autocommit() *repos { return &repos{h: &handle{store: s}} }

func (s *Store) Users() repository.UserRepository                 { return s.autocommit().Users() }
func (s *Store) Messages() repository.MessageRepository           { return s.autocommit().Messages() }
func (s *Store) Histories() repository.HistoryRepository          { return s.autocommit().Histories() }
func (s *Store) Notifications() repository.NotificationRepository { return s.autocommit().Notifications() }
func (s *Store) EventLogs() repository.EventLogRepository         { return s.autocommit().EventLogs() }
func (s *Store) Outbox() repository.OutboxRepository              { return s.autocommit().Outbox() }

// handle routes a repository call either to a transaction's working state
// or, when st is nil, to the live state under the store lock.
type handle struct {
	store *Store
	st    *state
}

func (h *handle) read(op string, fn func(st *state) error) error {
	if err := h.store.fault(op); err != nil {
		return err
	}
	if h.st != nil {
		return fn(h.st)
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	return fn(h.store.st)
}

func (h *handle) write(op string, fn func(st *state) error) error {
	if err := h.store.fault(op); err != nil {
		return err
	}
	if h.st != nil {
		return fn(h.st)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	working := h.store.st.clone()
	if err := fn(working); err != nil {
		return err
	}
	h.store.st = working
	return nil
}

type repos struct {
	h *handle
}

func (r *repos) Users() repository.UserRepository                 { return &userRepository{r.h} }
func (r *repos) Messages() repository.MessageRepository           { return &messageRepository{r.h} }
func (r *repos) Histories() repository.HistoryRepository          { return &historyRepository{r.h} }
func (r *repos) Notifications() repository.NotificationRepository { return &notificationRepository{r.h} }
func (r *repos) EventLogs() repository.EventLogRepository         { return &eventLogRepository{r.h} }
func (r *repos) Outbox() repository.OutboxRepository              { return &outboxRepository{r.h} }

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
