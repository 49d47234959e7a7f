package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

const actorKey = "actor"

// SetActor stores the authenticated caller on the request.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the authenticated caller, if any.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// MustActor returns the caller or writes a 401 and reports false.
func MustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		RespondError(c, apperrors.Unauthorized(nil))
		c.Abort()
	}
	return actor, ok
}
