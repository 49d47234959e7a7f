// Package history decides whether an edit needs a snapshot of the stored
// message and writes it.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

type Policy string

const (
	// PolicyContent snapshots only when the content changes.
	PolicyContent Policy = "content"
	// PolicyContentOrSubject also snapshots subject-only changes.
	PolicyContentOrSubject Policy = "content_or_subject"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyContent:
		return PolicyContent, nil
	case PolicyContentOrSubject:
		return PolicyContentOrSubject, nil
	}
	return "", fmt.Errorf("unknown history policy %q", s)
}

type Recorder struct {
	policy  Policy
	metrics *metrics.Metrics
}

func NewRecorder(policy Policy, m *metrics.Metrics) *Recorder {
	return &Recorder{policy: policy, metrics: m}
}

func (r *Recorder) Policy() Policy { return r.policy }

// NeedsSnapshot compares the stored row against the proposed one. A nil
// stored row is a first-time creation and never needs a snapshot.
func (r *Recorder) NeedsSnapshot(stored, proposed *model.Message) bool {
	if stored == nil || proposed == nil {
		return false
	}
	if stored.Content != proposed.Content {
		return true
	}
	return r.policy == PolicyContentOrSubject && stored.Subject != proposed.Subject
}

// Record runs before proposed is written. When a snapshot is due it stores
// the old values through repo and sets proposed.Edited, so both land in
// the caller's unit of work. It returns nil when nothing was recorded.
func (r *Recorder) Record(ctx context.Context, repo repository.HistoryRepository, stored, proposed *model.Message, editor uuid.UUID) (*model.MessageHistory, error) {
	if !r.NeedsSnapshot(stored, proposed) {
		return nil, nil
	}

	editedAt := proposed.UpdatedAt
	if editedAt.IsZero() {
		editedAt = time.Now().UTC()
	}

	h := &model.MessageHistory{
		ID:         uuid.New(),
		MessageID:  stored.ID,
		OldContent: stored.Content,
		OldSubject: stored.Subject,
		EditedBy:   editor,
		EditedAt:   editedAt,
	}
	if err := repo.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to record message history: %w", err)
	}

	proposed.Edited = true
	return h, nil
}

// Observe counts a snapshot once its unit of work has committed.
func (r *Recorder) Observe(h *model.MessageHistory) {
	if h != nil {
		r.metrics.HistorySnapshots.Inc()
	}
}
