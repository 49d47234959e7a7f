package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/service/user"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

type Handler struct {
	service *user.Service
	unread  *handler.UnreadCache
}

func NewHandler(service *user.Service, unread *handler.UnreadCache) *Handler {
	return &Handler{service: service, unread: unread}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("/me", h.Me)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid user ID", err))
		return uuid.Nil, false
	}
	return id, true
}

// CreateUser lets an authenticated caller create an account; elevated roles
// need an admin.
func (h *Handler) CreateUser(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	u, err := h.service.CreateUser(c.Request.Context(), &actor, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(u))
}

func (h *Handler) Me(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	h.get(c, actor.ID)
}

func (h *Handler) GetUser(c *gin.Context) {
	if _, ok := handler.MustActor(c); !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.get(c, id)
}

func (h *Handler) get(c *gin.Context, id uuid.UUID) {
	u, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	u, err := h.service.UpdateUser(c.Request.Context(), actor, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

// DeleteUser answers with the cleanup summary of the cascade.
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	sum, err := h.service.DeleteUser(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.unread.Flush()

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"summary":       sum,
		"total_deleted": sum.TotalDeleted(),
	}))
}
