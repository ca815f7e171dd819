package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
)

// OrderProjection keeps the local order replica in step with order events.
type OrderProjection struct {
	orders          application.OrderProjectionStore
	defaultCurrency string
	logger          *slog.Logger
}

func NewOrderProjection(orders application.OrderProjectionStore, defaultCurrency string, logger *slog.Logger) *OrderProjection {
	return &OrderProjection{
		orders:          orders,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// ApplyOrderCreated inserts the order, then applies any cancellation that
// arrived ahead of it.
func (p *OrderProjection) ApplyOrderCreated(ctx context.Context, evt domain.OrderCreatedEvent) error {
	order, err := domain.NewOrderFromEvent(evt, p.defaultCurrency)
	if err != nil {
		return domain.NewInvalidEventError(domain.TopicOrderCreated, err)
	}

	if err := p.orders.Insert(ctx, order); err != nil {
		if !errors.Is(err, domain.ErrDuplicateOrder) {
			return fmt.Errorf("insert order %s: %w", order.ID, err)
		}
		p.logger.Debug("order already projected", "order_id", order.ID)
	} else {
		p.logger.Info("order projected", "order_id", order.ID, "status", order.Status)
	}

	return p.applyParked(ctx, order.ID)
}

// ApplyOrderCancelled parks the cancellation when the order is not known yet.
func (p *OrderProjection) ApplyOrderCancelled(ctx context.Context, evt domain.OrderCancelledEvent) error {
	if evt.ID == "" {
		return domain.NewInvalidEventError(domain.TopicOrderCancelled, domain.NewMissingRequiredFieldError("order id"))
	}

	order, err := p.orders.FindByID(ctx, evt.ID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return p.park(ctx, evt)
		}
		return fmt.Errorf("find order %s: %w", evt.ID, err)
	}

	return p.cancel(ctx, order, evt.Version)
}

func (p *OrderProjection) cancel(ctx context.Context, order *domain.Order, version int64) error {
	if version <= order.Version {
		p.logger.Debug("stale order event skipped",
			"order_id", order.ID,
			"event_version", version,
			"current_version", order.Version,
		)
		return nil
	}

	expected := order.Version
	if err := order.ApplyCancelled(version); err != nil {
		return fmt.Errorf("cancel order %s at version %d: %w", order.ID, version, err)
	}

	if err := p.orders.UpdateStatus(ctx, order, expected); err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	p.logger.Info("order cancelled", "order_id", order.ID, "version", order.Version)
	return nil
}

func (p *OrderProjection) park(ctx context.Context, evt domain.OrderCancelledEvent) error {
	if err := p.orders.ParkCancellation(ctx, evt.ID, evt.Version); err != nil {
		return fmt.Errorf("park cancellation of order %s: %w", evt.ID, err)
	}
	p.logger.Info("cancellation parked until the order arrives", "order_id", evt.ID, "version", evt.Version)

	// The order may have been projected between the lookup and the park.
	return p.applyParked(ctx, evt.ID)
}

func (p *OrderProjection) applyParked(ctx context.Context, orderID string) error {
	version, err := p.orders.FindParkedCancellation(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNoParkedCancellation) {
			return nil
		}
		return fmt.Errorf("find parked cancellation of order %s: %w", orderID, err)
	}

	order, err := p.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil
		}
		return fmt.Errorf("find order %s: %w", orderID, err)
	}

	if err := p.cancel(ctx, order, version); err != nil {
		return err
	}
	if err := p.orders.ClearParkedCancellation(ctx, orderID, version); err != nil {
		return fmt.Errorf("clear parked cancellation of order %s: %w", orderID, err)
	}
	return nil
}
