package message

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/service/messaging"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type Handler struct {
	svc    *messaging.Service
	unread *handler.UnreadCache
}

func NewHandler(svc *messaging.Service, unread *handler.UnreadCache) *Handler {
	return &Handler{svc: svc, unread: unread}
}

// RegisterRoutes mounts the message routes. sendGuards run in front of the
// send endpoint only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, sendGuards ...gin.HandlerFunc) {
	messages := r.Group("/messages")
	{
		messages.POST("", append(sendGuards, h.SendMessage)...)
		messages.GET("", h.Inbox)
		messages.GET("/unread", h.Unread)
		messages.GET("/unread/count", h.UnreadCount)
		messages.GET("/:id", h.GetMessage)
		messages.PUT("/:id", h.EditMessage)
		messages.DELETE("/:id", h.DeleteMessage)
		messages.POST("/:id/read", h.MarkRead)
		messages.GET("/:id/history", h.ListHistory)
		messages.GET("/:id/thread", h.Thread)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid message ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) SendMessage(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	in := model.MessageInput{
		ReceiverID: uuid.MustParse(req.ReceiverID),
		Subject:    req.Subject,
		Content:    req.Content,
	}
	if req.ParentID != nil {
		parent := uuid.MustParse(*req.ParentID)
		in.ParentID = &parent
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), actor, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.unread.Invalidate(msg.ReceiverID)

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(msg))
}

func (h *Handler) EditMessage(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	msg, err := h.svc.EditMessage(c.Request.Context(), actor, id, model.MessageEdit{
		Subject: req.Subject,
		Content: req.Content,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	msg, err := h.svc.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.unread.Invalidate(msg.ReceiverID)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	msg, err := h.svc.DeleteMessage(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.unread.Invalidate(msg.ReceiverID)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": msg.ID}))
}

func (h *Handler) GetMessage(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	msg, err := h.svc.GetMessage(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) ListHistory(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	histories, err := h.svc.ListHistory(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(histories))
}

func (h *Handler) Thread(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	root, err := h.svc.Thread(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(root))
}

func (h *Handler) Inbox(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.svc.Inbox(c.Request.Context(), actor, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) Unread(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}

	msgs, err := h.svc.UnreadFor(c.Request.Context(), actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) UnreadCount(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}

	if n, hit := h.unread.Get(actor.ID); hit {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unread": n}))
		return
	}
	n, err := h.svc.UnreadCountFor(c.Request.Context(), actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.unread.Set(actor.ID, n)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unread": n}))
}
