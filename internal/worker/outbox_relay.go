package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
)

// OutboxRelay publishes outbox rows the request path could not deliver.
type OutboxRelay struct {
	outbox     application.OutboxStore
	announcer  *services.EventAnnouncer
	relayID    string
	interval   time.Duration
	batchSize  int
	lease      time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewOutboxRelay(
	outbox application.OutboxStore,
	announcer *services.EventAnnouncer,
	relayID string,
	interval time.Duration,
	batchSize int,
	lease time.Duration,
	maxRetries int,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outbox:     outbox,
		announcer:  announcer,
		relayID:    relayID,
		interval:   interval,
		batchSize:  batchSize,
		lease:      lease,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "relay_id", r.relayID, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce leases one batch and publishes it. It returns how many messages
// reached the bus.
func (r *OutboxRelay) RunOnce(ctx context.Context) int {
	batch, err := r.outbox.LockBatch(ctx, r.relayID, r.batchSize, r.lease, r.maxRetries)
	if err != nil {
		r.logger.Error("failed to lease outbox batch", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := r.announcer.Announce(ctx, msg); err != nil {
			continue
		}
		sent++
	}

	if len(batch) > 0 {
		r.logger.Info("relayed outbox batch", "leased", len(batch), "sent", sent)
	}
	return sent
}
