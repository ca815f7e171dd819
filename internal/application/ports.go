package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
)

// OrderStore reads the local order replica.
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

// OrderProjectionStore writes the local order replica from order events.
type OrderProjectionStore interface {
	OrderStore
	Insert(ctx context.Context, order *domain.Order) error
	UpdateStatus(ctx context.Context, order *domain.Order, expectedVersion int64) error

	// ParkCancellation holds a cancellation for an order not yet projected.
	// Parking twice keeps the newest version.
	ParkCancellation(ctx context.Context, orderID string, version int64) error
	FindParkedCancellation(ctx context.Context, orderID string) (int64, error)
	ClearParkedCancellation(ctx context.Context, orderID string, version int64) error
}

// PaymentStore persists payments. RecordWithOutbox must insert the payment,
// the outbox message and the attempt transition atomically.
type PaymentStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	RecordWithOutbox(ctx context.Context, payment *domain.Payment, attempt *domain.ChargeAttempt, msg *domain.OutboxMessage) error
}

// AttemptStore journals charge attempts around the processor call.
type AttemptStore interface {
	Begin(ctx context.Context, attempt *domain.ChargeAttempt) error
	FindByKey(ctx context.Context, idempotencyKey string) (*domain.ChargeAttempt, error)
	Update(ctx context.Context, attempt *domain.ChargeAttempt) error
	FindReconcilable(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*domain.ChargeAttempt, error)
}

// OutboxStore leases undelivered outbox rows to relays.
type OutboxStore interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration, maxRetries int) ([]*domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextAttemptAt time.Time) error
}

// ChargeRequest is the processor-facing charge. Amount is in minor units.
type ChargeRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Source      string            `json:"source"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ChargeResponse struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
	Created        int64  `json:"created"`
}

const (
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusPending   = "pending"
	ChargeStatusFailed    = "failed"
)

// ChargeProcessor is the port for the external card processor.
type ChargeProcessor interface {
	Charge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*ChargeResponse, error)
	FindCharge(ctx context.Context, idempotencyKey string) (*ChargeResponse, error)
}

// Message is a bus envelope. Topic uses the platform subject names
// (e.g. "payment:created"); drivers map it to their own naming rules.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

type EventPublisher interface {
	Publish(ctx context.Context, msg Message) error
}

type MessageHandler func(ctx context.Context, msg Message) error

// EventSubscriber delivers messages to handler until ctx ends.
type EventSubscriber interface {
	Run(ctx context.Context, handler MessageHandler) error
}

// OrderLocker guards an order against concurrent payment workflows.
// Acquire returns ErrLockNotAcquired when another holder exists.
type OrderLocker interface {
	Acquire(ctx context.Context, orderID string, ttl time.Duration) (release func(context.Context) error, err error)
}

// MessageDeduper remembers consumed messages.
type MessageDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}
