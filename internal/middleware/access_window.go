package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/messaging-api/internal/handler"
)

// AccessWindow rejects requests outside [startHour, endHour) of the
// server's local day. now is injectable for tests; nil means time.Now.
func AccessWindow(startHour, endHour int, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	msg := fmt.Sprintf("chat is only available between %02d:00 and %02d:00", startHour, endHour)

	return func(c *gin.Context) {
		hour := now().Hour()
		if hour < startHour || hour >= endHour {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse(msg))
			return
		}
		c.Next()
	}
}
