package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

type PaymentRepository struct {
	db *DB
	q  Executor
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db, q: db.Pool}
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT id, order_id, charge_id, attempt_id, created_at FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, id))
}

// FindByOrderID retrieves the payment for an order, if any.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT id, order_id, charge_id, attempt_id, created_at FROM payments WHERE order_id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, orderID))
}

// RecordWithOutbox commits the payment, the attempt's RECORDED state and the
// outbox message in one transaction. msg.ID is set on success.
func (r *PaymentRepository) RecordWithOutbox(ctx context.Context, p *domain.Payment, a *domain.ChargeAttempt, msg *domain.OutboxMessage) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO payments (id, order_id, charge_id, attempt_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, p.ID, p.OrderID, p.ChargeID, p.AttemptID, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		if err := updateAttempt(ctx, tx, a); err != nil {
			return err
		}

		id, err := insertOutbox(ctx, tx, msg)
		if err != nil {
			return err
		}
		msg.ID = id
		return nil
	})
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.ChargeID, &p.AttemptID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}
