package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/messaging-api/internal/app"
	"github.com/jwalitptl/messaging-api/internal/config"
	"github.com/jwalitptl/messaging-api/internal/email"
	"github.com/jwalitptl/messaging-api/internal/repository"
	internalworker "github.com/jwalitptl/messaging-api/internal/worker"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/messaging/redis"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
	"github.com/jwalitptl/messaging-api/pkg/worker"
)

func setupHealthCheck(port int, store repository.Store, registry *prometheus.Registry, logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			logger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if strings.ToLower(cfg.Storage.Driver) == "memory" {
		log.Fatal().Msg("The outbox worker needs a shared store; storage.driver memory is API-only")
	}

	hostname, _ := os.Hostname()
	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"worker_id": fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())})
	log.Logger = appLog.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:              cfg.Redis.URL,
		MaxRetries:       3,
		RetryBackoff:     100 * time.Millisecond,
		BreakerThreshold: cfg.Outbox.BreakerThreshold,
		BreakerTimeout:   cfg.Outbox.BreakerTimeout,
	}, appLog)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	var mailer worker.Mailer
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, "messaging")

	processor := worker.NewOutboxProcessor(
		store,
		broker,
		mailer,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxRetries:   cfg.Outbox.MaxRetries,
			Channel:      cfg.Redis.Channel,
		},
		appLog,
		m,
	)
	cleaner := internalworker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.RetentionPeriod, cfg.Outbox.CleanupInterval, appLog, m)

	// Setup health check endpoints
	setupHealthCheck(cfg.Server.WorkerHealthPort, store, registry, appLog)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLog.Info("Shutting down...")
		cancel()
	}()

	go cleaner.Start(ctx)
	processor.Start(ctx)
}
