package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
)

// OrderLookup resolves order ids against the local replica.
type OrderLookup struct {
	orders application.OrderStore
}

func NewOrderLookup(orders application.OrderStore) *OrderLookup {
	return &OrderLookup{orders: orders}
}

func (l *OrderLookup) Resolve(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.NewOrderNotFoundError(orderID)
		}
		return nil, application.NewInternalError(fmt.Errorf("find order %s: %w", orderID, err))
	}
	return order, nil
}
