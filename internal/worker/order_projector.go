package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
)

// ProjectedTopics are the order events the projector subscribes to.
var ProjectedTopics = []string{domain.TopicOrderCreated, domain.TopicOrderCancelled}

// OrderProjector feeds order events from the bus into the local order replica.
type OrderProjector struct {
	subscriber application.EventSubscriber
	projection *services.OrderProjection
	dedupe     application.MessageDeduper
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewOrderProjector(
	subscriber application.EventSubscriber,
	projection *services.OrderProjection,
	dedupe application.MessageDeduper,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *OrderProjector {
	return &OrderProjector{
		subscriber: subscriber,
		projection: projection,
		dedupe:     dedupe,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start consumes until ctx ends.
func (p *OrderProjector) Start(ctx context.Context) error {
	p.logger.Info("order projector started", "topics", ProjectedTopics)
	err := p.subscriber.Run(ctx, p.Handle)
	p.logger.Info("order projector stopping")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Handle applies one message. Malformed events are dropped; any other error
// is returned so the subscriber redelivers.
func (p *OrderProjector) Handle(ctx context.Context, msg application.Message) error {
	ctx = observability.ExtractHeaders(ctx, msg.Headers)

	key, apply, err := p.decode(msg)
	if err != nil {
		p.metrics.ProjectedEvent(msg.Topic, "invalid")
		p.logger.Warn("dropping malformed order event", "topic", msg.Topic, "error", err)
		return nil
	}

	seen, err := p.dedupe.Seen(ctx, key)
	if err != nil {
		// Projection is idempotent, so a dedupe outage only costs a re-apply.
		p.logger.Warn("dedupe check failed", "key", key, "error", err)
	}
	if seen {
		p.metrics.ProjectedEvent(msg.Topic, "duplicate")
		return nil
	}

	if err := apply(ctx); err != nil {
		if forgetErr := p.dedupe.Forget(ctx, key); forgetErr != nil {
			p.logger.Warn("failed to clear dedupe key", "key", key, "error", forgetErr)
		}
		if domain.IsErrorCode(err, domain.ErrCodeInvalidEvent) {
			p.metrics.ProjectedEvent(msg.Topic, "invalid")
			p.logger.Warn("dropping invalid order event", "topic", msg.Topic, "error", err)
			return nil
		}
		p.metrics.ProjectedEvent(msg.Topic, "failed")
		return err
	}

	p.metrics.ProjectedEvent(msg.Topic, "applied")
	return nil
}

func (p *OrderProjector) decode(msg application.Message) (string, func(context.Context) error, error) {
	switch msg.Topic {
	case domain.TopicOrderCreated:
		var evt domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return "", nil, domain.NewInvalidEventError(msg.Topic, err)
		}
		return dedupeKey(msg.Topic, evt.ID, evt.Version), func(ctx context.Context) error {
			return p.projection.ApplyOrderCreated(ctx, evt)
		}, nil
	case domain.TopicOrderCancelled:
		var evt domain.OrderCancelledEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return "", nil, domain.NewInvalidEventError(msg.Topic, err)
		}
		return dedupeKey(msg.Topic, evt.ID, evt.Version), func(ctx context.Context) error {
			return p.projection.ApplyOrderCancelled(ctx, evt)
		}, nil
	default:
		return "", nil, domain.NewInvalidEventError(msg.Topic, fmt.Errorf("unexpected topic %q", msg.Topic))
	}
}

func dedupeKey(topic, id string, version int64) string {
	return fmt.Sprintf("order-event:%s:%s:%d", topic, id, version)
}
