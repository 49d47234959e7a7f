package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/internal/service/notification"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	n := r.Group("/notifications")
	{
		n.GET("", h.List)
		n.GET("/unread/count", h.UnreadCount)
		n.POST("/:id/read", h.MarkRead)
	}
}

// List accepts ?unread=true and ?limit=N.
func (h *Handler) List(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.svc.List(c.Request.Context(), actor, unreadOnly, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) UnreadCount(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}

	n, err := h.svc.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unread": n}))
}

func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid notification ID", err))
		return
	}

	n, err := h.svc.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(n))
}
