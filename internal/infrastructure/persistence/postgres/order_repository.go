package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderRepository stores the local order replica.
type OrderRepository struct {
	q Executor
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{q: db.Pool}
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, price::text, currency, status, version, updated_at
		FROM orders
		WHERE id = $1
	`

	var (
		o     domain.Order
		price string
	)
	err := r.q.QueryRow(ctx, query, id).Scan(&o.ID, &o.UserID, &price, &o.Currency, &o.Status, &o.Version, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	o.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price of order %s: %w", id, err)
	}
	return &o, nil
}

// Insert adds a new order. An existing row with the same id is left untouched.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, price, currency, status, version, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, o.ID, o.UserID, o.Price.String(), o.Currency, string(o.Status), o.Version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateOrder
	}
	return nil
}

// UpdateStatus writes status and version only if the stored version is still expectedVersion.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, expectedVersion int64) error {
	query := `
		UPDATE orders
		SET status = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5
	`

	tag, err := r.q.Exec(ctx, query, string(o.Status), o.Version, time.Now().UTC(), o.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *OrderRepository) ParkCancellation(ctx context.Context, orderID string, version int64) error {
	query := `
		INSERT INTO parked_order_cancellations (order_id, version)
		VALUES ($1, $2)
		ON CONFLICT (order_id) DO UPDATE
		SET version = GREATEST(parked_order_cancellations.version, EXCLUDED.version)
	`

	if _, err := r.q.Exec(ctx, query, orderID, version); err != nil {
		return fmt.Errorf("failed to park cancellation: %w", err)
	}
	return nil
}

func (r *OrderRepository) FindParkedCancellation(ctx context.Context, orderID string) (int64, error) {
	query := `SELECT version FROM parked_order_cancellations WHERE order_id = $1`

	var version int64
	if err := r.q.QueryRow(ctx, query, orderID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNoParkedCancellation
		}
		return 0, fmt.Errorf("failed to find parked cancellation: %w", err)
	}
	return version, nil
}

// ClearParkedCancellation removes the parked row unless a newer one replaced it.
func (r *OrderRepository) ClearParkedCancellation(ctx context.Context, orderID string, version int64) error {
	query := `DELETE FROM parked_order_cancellations WHERE order_id = $1 AND version <= $2`

	if _, err := r.q.Exec(ctx, query, orderID, version); err != nil {
		return fmt.Errorf("failed to clear parked cancellation: %w", err)
	}
	return nil
}
