package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
	"github.com/google/uuid"
)

// PaymentRecorder stores the payment for a charged attempt together with its
// payment:created outbox row.
type PaymentRecorder struct {
	payments   application.PaymentStore
	relayGrace time.Duration
	logger     *slog.Logger
}

func NewPaymentRecorder(payments application.PaymentStore, relayGrace time.Duration, logger *slog.Logger) *PaymentRecorder {
	return &PaymentRecorder{
		payments:   payments,
		relayGrace: relayGrace,
		logger:     logger,
	}
}

// Record requires attempt to be CHARGED. On success the attempt is RECORDED
// and the returned message carries its outbox id.
func (r *PaymentRecorder) Record(ctx context.Context, attempt *domain.ChargeAttempt) (*domain.Payment, *domain.OutboxMessage, error) {
	if attempt.ChargeID == nil {
		return nil, nil, application.NewRecorderError(fmt.Errorf("attempt %s has no charge id", attempt.ID))
	}

	// The charge already happened; the write must not be abandoned with the request.
	ctx = context.WithoutCancel(ctx)

	payment, err := domain.NewPayment(uuid.New().String(), attempt.OrderID, *attempt.ChargeID, attempt.ID)
	if err != nil {
		return nil, nil, application.NewRecorderError(err)
	}

	msg, err := domain.NewOutboxMessage(
		domain.TopicPaymentCreated,
		payment.ID,
		domain.NewPaymentCreatedEvent(payment),
		time.Now().UTC().Add(r.relayGrace),
	)
	if err != nil {
		return nil, nil, application.NewRecorderError(err)
	}
	msg.Headers = observability.InjectHeaders(ctx, map[string]string{
		"order_id": payment.OrderID,
	})

	recorded := *attempt
	if err := recorded.MarkRecorded(payment.ID); err != nil {
		return nil, nil, application.NewRecorderError(err)
	}

	if err := r.payments.RecordWithOutbox(ctx, payment, &recorded, msg); err != nil {
		r.logger.Error("CHARGED_UNRECORDED: payment could not be stored after a successful charge",
			"attempt_id", attempt.ID,
			"order_id", attempt.OrderID,
			"charge_id", *attempt.ChargeID,
			"error", err,
		)
		return nil, nil, application.NewRecorderError(err)
	}

	*attempt = recorded
	return payment, msg, nil
}
