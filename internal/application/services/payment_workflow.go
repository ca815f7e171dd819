package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/DanielPopoola/ficmart-payment-service/workflow"

// PaymentWorkflow runs one payment request through lookup, eligibility,
// charge, record and announce. Each invocation is a single linear attempt.
type PaymentWorkflow struct {
	lookup    *OrderLookup
	initiator *ChargeInitiator
	recorder  *PaymentRecorder
	announcer *EventAnnouncer

	attempts application.AttemptStore
	payments application.PaymentStore
	locker   application.OrderLocker

	lockTTL  time.Duration
	validate *validator.Validate
	tracer   trace.Tracer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewPaymentWorkflow(
	lookup *OrderLookup,
	initiator *ChargeInitiator,
	recorder *PaymentRecorder,
	announcer *EventAnnouncer,
	attempts application.AttemptStore,
	payments application.PaymentStore,
	locker application.OrderLocker,
	metrics *observability.Metrics,
	lockTTL time.Duration,
	logger *slog.Logger,
) *PaymentWorkflow {
	return &PaymentWorkflow{
		lookup:    lookup,
		initiator: initiator,
		recorder:  recorder,
		announcer: announcer,
		attempts:  attempts,
		payments:  payments,
		locker:    locker,
		lockTTL:   lockTTL,
		validate:  validator.New(),
		tracer:    otel.Tracer(tracerName),
		metrics:   metrics,
		logger:    logger,
	}
}

func (w *PaymentWorkflow) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (result *CreatePaymentResult, err error) {
	ctx, span := w.tracer.Start(ctx, "payment.create", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
	))
	defer func() {
		observability.EndSpan(span, err)
		w.metrics.WorkflowOutcome(outcomeOf(result, err))
	}()

	if err := w.validate.Struct(cmd); err != nil {
		return nil, application.NewValidationError(err)
	}

	key := cmd.IdempotencyKey
	if key == "" {
		key = DeriveIdempotencyKey(cmd.OrderID, cmd.Token)
	}
	requestHash := ComputeHash(requestFingerprint{
		OrderID: cmd.OrderID,
		UserID:  cmd.UserID,
		Token:   cmd.Token,
	})

	if res, handled, err := w.replay(ctx, key, requestHash); handled {
		return res, err
	}

	order, err := w.resolveOrder(ctx, cmd)
	if err != nil {
		return nil, err
	}

	amount, err := domain.ToMinorUnits(order.Price, order.Currency)
	if err != nil {
		return nil, err
	}

	release, err := w.locker.Acquire(ctx, order.ID, w.lockTTL)
	if err != nil {
		if errors.Is(err, application.ErrLockNotAcquired) {
			return nil, application.NewPaymentInProgressError(order.ID)
		}
		// The unique index on live attempts still serialises the order.
		w.logger.Warn("order lock unavailable, continuing without it",
			"order_id", order.ID,
			"error", err,
		)
		release = nil
	}
	if release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release order lock", "order_id", order.ID, "error", err)
			}
		}()
	}

	if _, err := w.payments.FindByOrderID(ctx, order.ID); err == nil {
		return nil, application.NewOrderAlreadyPaidError(order.ID)
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, application.NewInternalError(fmt.Errorf("find payment for order %s: %w", order.ID, err))
	}

	attempt, err := domain.NewChargeAttempt(uuid.New().String(), key, requestHash, order.ID, cmd.UserID, amount)
	if err != nil {
		return nil, err
	}

	if err := w.attempts.Begin(ctx, attempt); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
			if res, handled, err := w.replay(ctx, key, requestHash); handled {
				return res, err
			}
			return nil, application.NewRequestProcessingError()
		case errors.Is(err, domain.ErrOrderAttemptExists):
			return nil, application.NewPaymentInProgressError(order.ID)
		default:
			return nil, application.NewInternalError(fmt.Errorf("begin charge attempt: %w", err))
		}
	}

	if err := w.charge(ctx, attempt, cmd.Token); err != nil {
		return nil, err
	}

	payment, msg, err := w.record(ctx, attempt)
	if err != nil {
		return nil, err
	}

	w.announce(ctx, msg)

	w.logger.Info("payment created",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"charge_id", payment.ChargeID,
	)
	return &CreatePaymentResult{PaymentID: payment.ID}, nil
}

func (w *PaymentWorkflow) resolveOrder(ctx context.Context, cmd CreatePaymentCommand) (order *domain.Order, err error) {
	ctx, end := w.stage(ctx, "resolve_order")
	defer func() { end(err) }()

	order, err = w.lookup.Resolve(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckEligibility(order, cmd.UserID); err != nil {
		return nil, err
	}
	return order, nil
}

func (w *PaymentWorkflow) charge(ctx context.Context, attempt *domain.ChargeAttempt, token string) (err error) {
	ctx, end := w.stage(ctx, "charge")
	defer func() { end(err) }()

	resp, err := w.initiator.Charge(ctx, attempt, token)
	if err != nil {
		w.settleFailedCharge(ctx, attempt, err)
		return err
	}

	if err := attempt.MarkCharged(resp.ID); err != nil {
		return application.NewInternalError(err)
	}
	if err := w.attempts.Update(context.WithoutCancel(ctx), attempt); err != nil {
		if errors.Is(err, domain.ErrAttemptStateConflict) {
			w.logger.Error("CHARGE_AFTER_SETTLEMENT: attempt was settled while its charge was in flight",
				"attempt_id", attempt.ID,
				"order_id", attempt.OrderID,
				"charge_id", resp.ID,
				"error", err,
			)
			return application.NewRecorderError(err)
		}
		// The reconciler finds the charge by attempt id if recording also fails.
		w.logger.Error("failed to persist charged attempt",
			"attempt_id", attempt.ID,
			"charge_id", resp.ID,
			"error", err,
		)
	}
	return nil
}

// settleFailedCharge journals what is known about a charge that did not succeed.
func (w *PaymentWorkflow) settleFailedCharge(ctx context.Context, attempt *domain.ChargeAttempt, chargeErr error) {
	var markErr error
	if svcErr, ok := application.IsServiceError(chargeErr); ok && svcErr.Code == application.ErrCodeProcessorDeclined {
		markErr = attempt.MarkDeclined(svcErr.Message)
	} else {
		markErr = attempt.MarkUnknown(chargeErr.Error())
	}
	if markErr != nil {
		w.logger.Error("invalid attempt transition after charge failure", "attempt_id", attempt.ID, "error", markErr)
		return
	}

	if err := w.attempts.Update(context.WithoutCancel(ctx), attempt); err != nil {
		w.logger.Error("failed to persist charge failure",
			"attempt_id", attempt.ID,
			"status", attempt.Status,
			"error", err,
		)
	}
}

func (w *PaymentWorkflow) record(ctx context.Context, attempt *domain.ChargeAttempt) (payment *domain.Payment, msg *domain.OutboxMessage, err error) {
	ctx, end := w.stage(ctx, "record")
	defer func() { end(err) }()

	return w.recorder.Record(ctx, attempt)
}

// announce never fails the request: the outbox row is already committed.
func (w *PaymentWorkflow) announce(ctx context.Context, msg *domain.OutboxMessage) {
	var err error
	ctx, end := w.stage(ctx, "announce")
	defer func() { end(err) }()

	if err = w.announcer.Announce(context.WithoutCancel(ctx), msg); err != nil {
		w.logger.Warn("payment event deferred to outbox relay",
			"outbox_id", msg.ID,
			"aggregate_id", msg.AggregateID,
			"error", err,
		)
	}
}

// replay answers a request whose idempotency key already has an attempt.
func (w *PaymentWorkflow) replay(ctx context.Context, key, requestHash string) (*CreatePaymentResult, bool, error) {
	attempt, err := w.attempts.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return nil, false, nil
		}
		return nil, true, application.NewInternalError(fmt.Errorf("find attempt by key: %w", err))
	}

	if attempt.RequestHash != requestHash {
		return nil, true, application.NewIdempotencyMismatchError()
	}

	switch attempt.Status {
	case domain.AttemptRecorded:
		if attempt.PaymentID == nil {
			return nil, true, application.NewInternalError(fmt.Errorf("recorded attempt %s has no payment", attempt.ID))
		}
		return &CreatePaymentResult{PaymentID: *attempt.PaymentID, Replayed: true}, true, nil
	case domain.AttemptDeclined:
		return nil, true, application.NewProcessorDeclinedError(&application.ProcessorError{
			Code:       "declined",
			Message:    deref(attempt.LastError),
			StatusCode: http.StatusPaymentRequired,
		})
	case domain.AttemptUnknown:
		return nil, true, application.NewChargeOutcomeUnknownError(errors.New(deref(attempt.LastError)))
	default:
		return nil, true, application.NewRequestProcessingError()
	}
}

func (w *PaymentWorkflow) stage(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "payment."+name)
	return ctx, func(err error) {
		observability.EndSpan(span, err)
		w.metrics.ObserveStage(name, start)
	}
}

func outcomeOf(result *CreatePaymentResult, err error) string {
	switch {
	case err != nil:
		return application.ToErrorCode(err)
	case result != nil && result.Replayed:
		return "replayed"
	default:
		return "created"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
