package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

// Authenticator resolves a bearer token to an actor.
type Authenticator interface {
	Authenticate(token string) (model.Actor, error)
}

type AuthMiddleware struct {
	authService Authenticator
}

func NewAuthMiddleware(authService Authenticator) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate verifies the bearer token and stores the actor on the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			handler.RespondError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			c.Abort()
			return
		}

		actor, err := m.authService.Authenticate(parts[1])
		if err != nil {
			handler.RespondError(c, err)
			c.Abort()
			return
		}

		handler.SetActor(c, actor)
		c.Next()
	}
}
