package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const (
	constraintAttemptKey       = "charge_attempts_idempotency_key_key"
	constraintAttemptLiveOrder = "charge_attempts_live_order_idx"
)

const attemptColumns = `
	id, idempotency_key, request_hash, order_id, user_id, amount_minor, currency, status,
	charge_id, payment_id, last_error, attempt_count, next_retry_at, created_at, updated_at
`

type AttemptRepository struct {
	q Executor
}

func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{q: db.Pool}
}

// Begin journals a new PENDING attempt before the processor is called.
func (r *AttemptRepository) Begin(ctx context.Context, a *domain.ChargeAttempt) error {
	query := `
		INSERT INTO charge_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.Exec(ctx, query,
		a.ID,
		a.IdempotencyKey,
		a.RequestHash,
		a.OrderID,
		a.UserID,
		a.Amount.Amount,
		a.Amount.Currency,
		string(a.Status),
		a.ChargeID,
		a.PaymentID,
		a.LastError,
		a.AttemptCount,
		a.NextRetryAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			switch violatedConstraint(err) {
			case constraintAttemptKey:
				return domain.ErrDuplicateIdempotencyKey
			case constraintAttemptLiveOrder:
				return domain.ErrOrderAttemptExists
			}
		}
		return fmt.Errorf("failed to insert charge attempt: %w", err)
	}
	a.MarkStored()
	return nil
}

func (r *AttemptRepository) FindByKey(ctx context.Context, key string) (*domain.ChargeAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM charge_attempts WHERE idempotency_key = $1`
	return scanAttempt(r.q.QueryRow(ctx, query, key))
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*domain.ChargeAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM charge_attempts WHERE id = $1`
	return scanAttempt(r.q.QueryRow(ctx, query, id))
}

func (r *AttemptRepository) Update(ctx context.Context, a *domain.ChargeAttempt) error {
	return updateAttempt(ctx, r.q, a)
}

// FindReconcilable returns unfinished attempts untouched for at least
// olderThan whose retry time has come.
func (r *AttemptRepository) FindReconcilable(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*domain.ChargeAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM charge_attempts
		WHERE status IN ('PENDING', 'UNKNOWN', 'CHARGED')
		  AND updated_at < $1
		  AND attempt_count < $2
		  AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, time.Now().UTC().Add(-olderThan), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconcilable attempts: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ChargeAttempt, error) {
		return scanAttempt(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan reconcilable attempts: %w", err)
	}
	return results, nil
}

// updateAttempt writes a only while the row still holds a.StoredStatus(), so
// two writers settling the same attempt cannot overwrite each other.
func updateAttempt(ctx context.Context, q Executor, a *domain.ChargeAttempt) error {
	query := `
		UPDATE charge_attempts
		SET status = $1, charge_id = $2, payment_id = $3, last_error = $4,
			attempt_count = $5, next_retry_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9
	`

	tag, err := q.Exec(ctx, query,
		string(a.Status),
		a.ChargeID,
		a.PaymentID,
		a.LastError,
		a.AttemptCount,
		a.NextRetryAt,
		a.UpdatedAt,
		a.ID,
		string(a.StoredStatus()),
	)
	if err != nil {
		return fmt.Errorf("failed to update charge attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM charge_attempts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check charge attempt: %w", err)
		}
		if !exists {
			return domain.ErrAttemptNotFound
		}
		return fmt.Errorf("attempt %s is no longer %s: %w", a.ID, a.StoredStatus(), domain.ErrAttemptStateConflict)
	}
	a.MarkStored()
	return nil
}

func scanAttempt(row pgx.Row) (*domain.ChargeAttempt, error) {
	var a domain.ChargeAttempt
	err := row.Scan(
		&a.ID,
		&a.IdempotencyKey,
		&a.RequestHash,
		&a.OrderID,
		&a.UserID,
		&a.Amount.Amount,
		&a.Amount.Currency,
		&a.Status,
		&a.ChargeID,
		&a.PaymentID,
		&a.LastError,
		&a.AttemptCount,
		&a.NextRetryAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}
