package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
)

// EventAnnouncer hands outbox messages to the bus and records the result.
// It is used both right after a payment is recorded and by the outbox relay.
type EventAnnouncer struct {
	publisher   application.EventPublisher
	outbox      application.OutboxStore
	baseBackoff time.Duration
	maxRetries  int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

func NewEventAnnouncer(
	publisher application.EventPublisher,
	outbox application.OutboxStore,
	baseBackoff time.Duration,
	maxRetries int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *EventAnnouncer {
	return &EventAnnouncer{
		publisher:   publisher,
		outbox:      outbox,
		baseBackoff: baseBackoff,
		maxRetries:  maxRetries,
		metrics:     metrics,
		logger:      logger,
	}
}

// Announce publishes msg. A failed publish leaves the row for the relay and
// is returned as a PublishError; the payment itself stays committed.
func (a *EventAnnouncer) Announce(ctx context.Context, msg *domain.OutboxMessage) error {
	pubCtx := observability.ExtractHeaders(ctx, msg.Headers)

	err := a.publisher.Publish(pubCtx, application.Message{
		Topic:   msg.Topic,
		Key:     msg.AggregateID,
		Payload: msg.Payload,
		Headers: msg.Headers,
	})
	if err != nil {
		a.metrics.OutboxDispatch("failed")
		a.recordFailure(ctx, msg, err)
		return application.NewPublishError(err)
	}

	a.metrics.OutboxDispatch("sent")
	if err := a.outbox.MarkSent(ctx, msg.ID); err != nil {
		// The bus has the event; a second delivery is tolerated by consumers.
		a.logger.Warn("failed to mark outbox message sent",
			"outbox_id", msg.ID,
			"topic", msg.Topic,
			"error", err,
		)
	}
	return nil
}

func (a *EventAnnouncer) recordFailure(ctx context.Context, msg *domain.OutboxMessage, pubErr error) {
	retries := msg.RetryCount + 1
	next := time.Now().UTC().Add(Backoff(a.baseBackoff, msg.RetryCount))

	if err := a.outbox.MarkFailed(ctx, msg.ID, pubErr.Error(), next); err != nil {
		a.logger.Error("failed to record outbox publish failure",
			"outbox_id", msg.ID,
			"error", err,
		)
		return
	}

	if retries >= a.maxRetries {
		a.metrics.OutboxDispatch("dead_letter")
		a.logger.Error("OUTBOX_DEAD_LETTER: event exhausted publish retries",
			"outbox_id", msg.ID,
			"topic", msg.Topic,
			"aggregate_id", msg.AggregateID,
			"retries", retries,
			"error", pubErr,
		)
		return
	}

	a.logger.Warn("event publish failed, scheduled for relay",
		"outbox_id", msg.ID,
		"topic", msg.Topic,
		"retry_count", retries,
		"next_attempt_at", next,
		"error", pubErr,
	)
}
