package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/messaging-api/internal/handler"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
	"github.com/jwalitptl/messaging-api/pkg/ratelimit"
)

// SendRateLimit enforces the per-actor send budget kept by tracker. It
// must run after authentication.
func SendRateLimit(tracker *ratelimit.Tracker, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := handler.MustActor(c)
		if !ok {
			return
		}

		if !tracker.Allow(actor.ID.String(), time.Now()) {
			m.RateLimitedRequests.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			return
		}

		c.Next()
	}
}

// AuthThrottle slows down sign-up and login attempts per client IP.
func AuthThrottle(throttle *ratelimit.Throttle, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !throttle.Allow(c.ClientIP(), time.Now()) {
			m.RateLimitedRequests.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("too many attempts"))
			return
		}
		c.Next()
	}
}
