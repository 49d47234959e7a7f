package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type eventLogRepository struct {
	h *handle
}

// Create stores the entry. The event log carries no foreign keys.
func (r *eventLogRepository) Create(ctx context.Context, log *model.EventLog) error {
	return r.h.write("event_logs.create", func(st *state) error {
		row := *log
		row.RelatedUserID = copyUUID(log.RelatedUserID)
		row.Metadata = log.Metadata.Clone()
		st.eventLogs.rows[log.ID] = row
		st.eventLogs.seq[log.ID] = st.nextSeq()
		return nil
	})
}

func (r *eventLogRepository) List(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLog, error) {
	var out []*model.EventLog
	err := r.h.read("event_logs.list", func(st *state) error {
		for _, l := range st.eventLogs.rows {
			if filter.EventType != "" && l.EventType != filter.EventType {
				continue
			}
			if filter.RelatedUserID != nil && (l.RelatedUserID == nil || *l.RelatedUserID != *filter.RelatedUserID) {
				continue
			}
			row := l
			row.RelatedUserID = copyUUID(l.RelatedUserID)
			row.Metadata = l.Metadata.Clone()
			out = append(out, &row)
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return st.eventLogs.seq[out[i].ID] > st.eventLogs.seq[out[j].ID]
		})
		if filter.Offset > 0 {
			if filter.Offset >= len(out) {
				out = nil
			} else {
				out = out[filter.Offset:]
			}
		}
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
		return nil
	})
	return out, err
}
