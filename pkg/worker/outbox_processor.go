package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/messaging"
	"github.com/jwalitptl/messaging-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries is the number of delivery attempts after which a row is
	// marked failed and no longer polled.
	MaxRetries int
	Channel    string
}

// Mailer sends a plain notification email. Delivery by mail is best effort
// and never fails an outbox row.
type Mailer interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	mailer  Mailer
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewOutboxProcessor panics on a config that cannot make progress. mailer
// may be nil.
func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	mailer Mailer,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.Channel == "" {
		config.Channel = "notifications"
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		mailer:  mailer,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch delivers up to BatchSize pending rows and returns how many
// were published. Rows are claimed and updated in a single unit of work;
// counters and emails follow only once that unit of work has committed.
// A rolled back batch is published again on the next poll.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	var res batchResult
	err := p.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		res = batchResult{}
		events, err := tx.Outbox().GetPending(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.OutboxQueueSize.Set(float64(len(events)))

		for _, event := range events {
			if err := p.processEvent(ctx, tx, event, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for eventType, n := range res.retries {
		p.metrics.OutboxRetries.WithLabelValues(eventType).Add(float64(n))
	}
	p.metrics.OutboxEventsFailed.Add(float64(res.failed))
	p.metrics.OutboxEventsProcessed.Add(float64(res.published))
	for _, m := range res.mails {
		if err := p.mailer.SendCustom(ctx, m.to, m.subject, m.body); err != nil {
			p.logger.Error(err, "Failed to send notification email",
				"event_id", m.eventID.String(), "user_id", m.userID.String())
		}
	}
	return res.published, nil
}

// batchResult collects what a batch did until its unit of work commits.
type batchResult struct {
	published int
	failed    int
	retries   map[string]int
	mails     []pendingMail
}

type pendingMail struct {
	eventID uuid.UUID
	userID  uuid.UUID
	to      string
	subject string
	body    string
}

// processEvent returns an error only when the row's status could not be
// written; delivery failures are recorded on the row.
func (p *OutboxProcessor) processEvent(ctx context.Context, tx repository.Repositories, event *model.OutboxEvent, res *batchResult) error {
	env := messaging.Envelope{
		EventID:   event.ID,
		Type:      event.EventType,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	}
	payload, err := env.Encode()
	if err == nil {
		err = p.broker.Publish(ctx, p.config.Channel, payload)
	}

	if err != nil {
		final := event.RetryCount+1 >= p.config.MaxRetries
		if res.retries == nil {
			res.retries = make(map[string]int)
		}
		res.retries[event.EventType]++
		if final {
			res.failed++
		}
		p.logger.Error(err, "Failed to publish event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retry_count", event.RetryCount+1,
			"final", final)
		if updateErr := tx.Outbox().MarkFailed(ctx, event.ID, err.Error(), final); updateErr != nil {
			return fmt.Errorf("failed to update event status: %w", updateErr)
		}
		return nil
	}

	if err := tx.Outbox().MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	event.Status = model.OutboxStatusProcessed
	res.published++

	if mail, ok := p.prepareEmail(ctx, tx, event); ok {
		res.mails = append(res.mails, mail)
	}
	return nil
}

// prepareEmail resolves the recipient of a notification row. The mail is
// sent by ProcessBatch after commit.
func (p *OutboxProcessor) prepareEmail(ctx context.Context, tx repository.Repositories, event *model.OutboxEvent) (pendingMail, bool) {
	if p.mailer == nil || event.EventType != model.OutboxNotificationCreated {
		return pendingMail{}, false
	}
	var n model.NotificationEvent
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		p.logger.Error(err, "Failed to decode notification payload", "event_id", event.ID.String())
		return pendingMail{}, false
	}
	user, err := tx.Users().Get(ctx, n.UserID)
	if err != nil {
		p.logger.Warn("Skipping email for unknown recipient", "user_id", n.UserID.String())
		return pendingMail{}, false
	}
	return pendingMail{
		eventID: event.ID,
		userID:  n.UserID,
		to:      user.Email,
		subject: n.Title,
		body:    n.Description,
	}, true
}
