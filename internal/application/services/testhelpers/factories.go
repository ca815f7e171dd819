package testhelpers

import (
	"context"
	"testing"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/persistence/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// SeedOrder inserts a payable order owned by userID and returns it.
func SeedOrder(t *testing.T, ctx context.Context, db *postgres.DB, userID string, price int64) *domain.Order {
	t.Helper()

	order := &domain.Order{
		ID:       "order-" + uuid.New().String(),
		UserID:   userID,
		Price:    decimal.NewFromInt(price),
		Currency: domain.DefaultCurrency,
		Status:   domain.OrderStatusCreated,
		Version:  1,
	}
	require.NoError(t, postgres.NewOrderRepository(db).Insert(ctx, order))
	return order
}

// NewPendingAttempt builds an unsaved attempt for order.
func NewPendingAttempt(t *testing.T, order *domain.Order) *domain.ChargeAttempt {
	t.Helper()

	amount, err := domain.ToMinorUnits(order.Price, order.Currency)
	require.NoError(t, err)

	attempt, err := domain.NewChargeAttempt(
		uuid.New().String(),
		"idem-"+uuid.New().String(),
		"hash-"+uuid.New().String(),
		order.ID,
		order.UserID,
		amount,
	)
	require.NoError(t, err)
	return attempt
}

// DefaultOrderCreatedEvent returns a valid order:created event.
func DefaultOrderCreatedEvent() domain.OrderCreatedEvent {
	return domain.OrderCreatedEvent{
		ID:      "order-" + uuid.New().String(),
		Version: 1,
		Status:  domain.OrderStatusCreated,
		UserID:  "user-" + uuid.New().String(),
		Ticket: domain.EventTicket{
			ID:    "ticket-" + uuid.New().String(),
			Price: decimal.RequireFromString("20.00"),
		},
	}
}
