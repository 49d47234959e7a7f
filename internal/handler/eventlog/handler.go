package eventlog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type Handler struct {
	svc *eventlog.Service
}

func NewHandler(svc *eventlog.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/event-logs", h.List)
}

// List filters on event_type and related_user_id, paged by limit and
// offset.
func (h *Handler) List(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}

	filter := model.EventLogFilter{
		EventType: model.EventType(c.Query("event_type")),
	}
	if raw := c.Query("related_user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid related_user_id", err))
			return
		}
		filter.RelatedUserID = &id
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	logs, err := h.svc.List(c.Request.Context(), actor, filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}
