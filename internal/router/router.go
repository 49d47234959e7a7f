package router

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/messaging-api/internal/handler/auth"
	"github.com/jwalitptl/messaging-api/internal/handler/eventlog"
	"github.com/jwalitptl/messaging-api/internal/handler/health"
	"github.com/jwalitptl/messaging-api/internal/handler/message"
	"github.com/jwalitptl/messaging-api/internal/handler/notification"
	"github.com/jwalitptl/messaging-api/internal/handler/prometheus"
	"github.com/jwalitptl/messaging-api/internal/handler/user"
	"github.com/jwalitptl/messaging-api/internal/middleware"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
	"github.com/jwalitptl/messaging-api/pkg/ratelimit"
	"github.com/jwalitptl/messaging-api/pkg/validator"
)

type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Message      *message.Handler
	Notification *notification.Handler
	EventLog     *eventlog.Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	// MetricsPath is where the metrics handler is mounted; empty disables it.
	MetricsPath string
	// RateLimiter guards message sends; nil disables limiting.
	RateLimiter *ratelimit.Tracker
	// AuthThrottle guards register and login per client IP; nil disables it.
	AuthThrottle *ratelimit.Throttle
	// Access window for the message routes, applied when enabled.
	AccessWindowEnabled bool
	AccessStartHour     int
	AccessEndHour       int
	MaxBodySize         int64
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	h       Handlers
	metrics *metrics.Metrics
	config  RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	validator.Setup()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.SizeLimit(config.MaxBodySize),
	)

	r := &Router{
		engine:  engine,
		auth:    auth,
		h:       h,
		metrics: m,
		config:  config,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	if r.h.Metrics != nil && r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.h.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	r.h.Health.RegisterRoutes(api)

	// Public routes
	public := api.Group("")
	if r.config.AuthThrottle != nil {
		public.Use(middleware.AuthThrottle(r.config.AuthThrottle, r.metrics))
	}
	r.h.Auth.RegisterRoutes(public)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.h.User.RegisterRoutes(protected)
	r.h.Notification.RegisterRoutes(protected)
	r.h.EventLog.RegisterRoutes(protected)

	chat := protected.Group("")
	if r.config.AccessWindowEnabled {
		chat.Use(middleware.AccessWindow(r.config.AccessStartHour, r.config.AccessEndHour, nil))
	}
	var sendGuards []gin.HandlerFunc
	if r.config.RateLimiter != nil {
		sendGuards = append(sendGuards, middleware.SendRateLimit(r.config.RateLimiter, r.metrics))
	}
	r.h.Message.RegisterRoutes(chat, sendGuards...)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
