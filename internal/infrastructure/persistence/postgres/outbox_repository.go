package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `
	id, aggregate_id, topic, payload, headers, status, retry_count, last_error,
	next_attempt_at, created_at, sent_at
`

type OutboxRepository struct {
	q Executor
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{q: db.Pool}
}

// LockBatch leases up to batchSize due messages to relayID. A leased row is
// invisible to other relays until lease elapses, so a crashed relay's batch
// is picked up again.
func (r *OutboxRepository) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration, maxRetries int) ([]*domain.OutboxMessage, error) {
	query := `
		UPDATE outbox
		SET next_attempt_at = $3, relay_id = $1
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status <> 'sent'
			  AND retry_count < $4
			  AND next_attempt_at <= now()
			ORDER BY next_attempt_at ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.q.Query(ctx, query, relayID, batchSize, time.Now().UTC().Add(lease), maxRetries)
	if err != nil {
		return nil, fmt.Errorf("lock outbox batch: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.OutboxMessage, error) {
		var m domain.OutboxMessage
		err := row.Scan(
			&m.ID,
			&m.AggregateID,
			&m.Topic,
			&m.Payload,
			&m.Headers,
			&m.Status,
			&m.RetryCount,
			&m.LastError,
			&m.NextAttemptAt,
			&m.CreatedAt,
			&m.SentAt,
		)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox batch: %w", err)
	}
	return results, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE outbox SET status = 'sent', sent_at = $2, last_error = NULL WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark outbox message sent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextAttemptAt time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE outbox
		SET status = 'failed', retry_count = retry_count + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1 AND status <> 'sent'
	`, id, errMsg, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message failed: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, q Executor, m *domain.OutboxMessage) (int64, error) {
	headers := m.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO outbox (aggregate_id, topic, payload, headers, status, retry_count, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.AggregateID, m.Topic, m.Payload, headers, string(m.Status), m.RetryCount, m.NextAttemptAt, m.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return id, nil
}
