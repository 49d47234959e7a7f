// Package app wires configuration, storage and services into the HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/messaging-api/internal/config"
	"github.com/jwalitptl/messaging-api/internal/handler"
	authHandler "github.com/jwalitptl/messaging-api/internal/handler/auth"
	eventlogHandler "github.com/jwalitptl/messaging-api/internal/handler/eventlog"
	"github.com/jwalitptl/messaging-api/internal/handler/health"
	messageHandler "github.com/jwalitptl/messaging-api/internal/handler/message"
	notificationHandler "github.com/jwalitptl/messaging-api/internal/handler/notification"
	promHandler "github.com/jwalitptl/messaging-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/messaging-api/internal/handler/user"
	"github.com/jwalitptl/messaging-api/internal/middleware"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	"github.com/jwalitptl/messaging-api/internal/repository/postgres"
	"github.com/jwalitptl/messaging-api/internal/router"
	authService "github.com/jwalitptl/messaging-api/internal/service/auth"
	"github.com/jwalitptl/messaging-api/internal/service/cleanup"
	"github.com/jwalitptl/messaging-api/internal/service/eventlog"
	"github.com/jwalitptl/messaging-api/internal/service/history"
	"github.com/jwalitptl/messaging-api/internal/service/messaging"
	"github.com/jwalitptl/messaging-api/internal/service/notification"
	userService "github.com/jwalitptl/messaging-api/internal/service/user"
	"github.com/jwalitptl/messaging-api/pkg/auth"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
	"github.com/jwalitptl/messaging-api/pkg/ratelimit"
	"github.com/jwalitptl/messaging-api/pkg/security"
)

// OpenStore opens the store selected by cfg.Storage.Driver and, for
// Postgres, applies the schema when migration is enabled.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		return memory.NewStore(), nil
	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return postgres.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

type Options struct {
	// Hasher defaults to bcrypt at its default cost.
	Hasher security.PasswordHasher
	// Registry receives the service metrics; nil means a fresh registry.
	Registry *prometheus.Registry
}

// App holds the wired services behind the HTTP router.
type App struct {
	Store         repository.Store
	Metrics       *metrics.Metrics
	Messaging     *messaging.Service
	Users         *userService.Service
	Notifications *notification.Service
	EventLogs     *eventlog.Service
	Auth          *authService.Service

	router *router.Router
}

func New(cfg *config.Config, store repository.Store, log *logger.Logger, opts Options) (*App, error) {
	if opts.Hasher == nil {
		opts.Hasher = security.NewBcryptHasher(0)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	m := metrics.NewMetrics(opts.Registry, "messaging")

	policy, err := history.ParsePolicy(cfg.Pipeline.HistoryPolicy)
	if err != nil {
		return nil, err
	}
	jwtSvc, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	events := eventlog.NewService(store, m)
	notifier := notification.NewService(store, events, m)
	recorder := history.NewRecorder(policy, m)
	msgSvc := messaging.NewService(store, recorder, notifier, events, m, log)
	users := userService.NewService(store, opts.Hasher, events, cleanup.NewCoordinator(events, m), log)
	authSvc := authService.NewService(store.Users(), jwtSvc, opts.Hasher)

	unread := handler.NewUnreadCache(cfg.Cache.UnreadTTL)
	handlers := router.Handlers{
		Auth:         authHandler.NewHandler(authSvc, users),
		User:         userHandler.NewHandler(users, unread),
		Message:      messageHandler.NewHandler(msgSvc, unread),
		Notification: notificationHandler.NewHandler(notifier),
		EventLog:     eventlogHandler.NewHandler(events),
		Health:       health.NewHandler(store),
	}
	rcfg := router.RouterConfig{
		AccessWindowEnabled: cfg.AccessWindow.Enabled,
		AccessStartHour:     cfg.AccessWindow.StartHour,
		AccessEndHour:       cfg.AccessWindow.EndHour,
	}
	if cfg.Monitoring.Enabled {
		handlers.Metrics = promHandler.New(opts.Registry)
		rcfg.MetricsPath = cfg.Monitoring.MetricsPath
	}
	if cfg.RateLimit.Enabled {
		rcfg.RateLimiter = ratelimit.NewTracker(cfg.RateLimit.Messages, cfg.RateLimit.Window, cfg.RateLimit.IdleTTL)
		rcfg.AuthThrottle = ratelimit.NewThrottle(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst, cfg.RateLimit.IdleTTL)
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), handlers, m, rcfg)

	return &App{
		Store:         store,
		Metrics:       m,
		Messaging:     msgSvc,
		Users:         users,
		Notifications: notifier,
		EventLogs:     events,
		Auth:          authSvc,
		router:        r,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.router.Engine()
}
