package eventlog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

func TestAppend(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewNop()
	svc := NewService(store, m)
	uid := uuid.New()

	log, err := svc.Append(context.Background(), store.EventLogs(), model.EventUserCreated, &uid, "User 'alice' was created", nil)
	require.NoError(t, err)
	assert.NotNil(t, log.Metadata)
	assert.False(t, log.CreatedAt.IsZero())

	// counted only once the caller's unit of work commits
	var out dto.Metric
	require.NoError(t, m.EventLogsAppended.WithLabelValues("user_created").Write(&out))
	assert.Zero(t, out.GetCounter().GetValue())

	svc.Observe(log.EventType)
	require.NoError(t, m.EventLogsAppended.WithLabelValues("user_created").Write(&out))
	assert.Equal(t, 1.0, out.GetCounter().GetValue())

	_, err = svc.Append(context.Background(), store.EventLogs(), model.EventType("user_renamed"), nil, "", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestListRequiresAdmin(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, metrics.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, store.EventLogs(), model.EventMessageEdited, nil, "edit", nil)
		require.NoError(t, err)
	}

	_, err := svc.List(ctx, model.Actor{ID: uuid.New(), Role: model.RoleModerator}, model.EventLogFilter{})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	logs, err := svc.List(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, model.EventLogFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	_, err = svc.List(ctx, model.Actor{Role: model.RoleAdmin}, model.EventLogFilter{EventType: "bogus"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
