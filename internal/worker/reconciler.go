package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
)

// Reconciler settles charge attempts the request path left unfinished:
// CHARGED attempts whose payment was never stored, and PENDING or UNKNOWN
// attempts whose processor outcome is not known locally.
type Reconciler struct {
	attempts   application.AttemptStore
	processor  application.ChargeProcessor
	recorder   *services.PaymentRecorder
	announcer  *services.EventAnnouncer
	interval   time.Duration
	grace      time.Duration
	maxRetries int
	batchSize  int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewReconciler(
	attempts application.AttemptStore,
	processor application.ChargeProcessor,
	recorder *services.PaymentRecorder,
	announcer *services.EventAnnouncer,
	interval time.Duration,
	grace time.Duration,
	maxRetries int,
	batchSize int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		attempts:   attempts,
		processor:  processor,
		recorder:   recorder,
		announcer:  announcer,
		interval:   interval,
		grace:      grace,
		maxRetries: maxRetries,
		batchSize:  batchSize,
		metrics:    metrics,
		logger:     logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler", "interval", r.interval, "batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	attempts, err := r.attempts.FindReconcilable(ctx, r.grace, r.maxRetries, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch reconcilable attempts", "error", err)
		return
	}

	if len(attempts) == 0 {
		return
	}

	r.logger.Info("reconciling charge attempts", "count", len(attempts))

	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return
		}
		result, err := r.reconcile(ctx, attempt)
		r.metrics.ReconcileResult(result)
		if err != nil {
			r.logger.Error("reconciliation failed for attempt",
				"attempt_id", attempt.ID,
				"order_id", attempt.OrderID,
				"status", attempt.Status,
				"error", err,
			)
			continue
		}
		r.logger.Info("reconciled charge attempt",
			"attempt_id", attempt.ID,
			"order_id", attempt.OrderID,
			"result", result,
		)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, attempt *domain.ChargeAttempt) (string, error) {
	switch attempt.Status {
	case domain.AttemptCharged:
		return r.record(ctx, attempt)
	case domain.AttemptPending, domain.AttemptUnknown:
		return r.resolve(ctx, attempt)
	default:
		return "skipped", nil
	}
}

// resolve asks the processor what happened to the attempt's charge.
func (r *Reconciler) resolve(ctx context.Context, attempt *domain.ChargeAttempt) (string, error) {
	charge, err := r.processor.FindCharge(ctx, attempt.ID)
	if err != nil {
		if isNotFound(err) {
			return r.decline(ctx, attempt, "not_found_at_processor")
		}
		return r.retryLater(ctx, attempt, err)
	}

	switch charge.Status {
	case application.ChargeStatusSucceeded:
		if err := attempt.MarkCharged(charge.ID); err != nil {
			return "failed", err
		}
		if err := r.attempts.Update(ctx, attempt); err != nil {
			if settledElsewhere(err) {
				return "skipped", nil
			}
			return "failed", fmt.Errorf("mark attempt charged: %w", err)
		}
		return r.record(ctx, attempt)
	case application.ChargeStatusFailed:
		reason := charge.FailureCode
		if reason == "" {
			reason = "declined"
		}
		return r.decline(ctx, attempt, reason)
	default:
		return r.retryLater(ctx, attempt, fmt.Errorf("charge %s is %s", charge.ID, charge.Status))
	}
}

func (r *Reconciler) record(ctx context.Context, attempt *domain.ChargeAttempt) (string, error) {
	_, msg, err := r.recorder.Record(ctx, attempt)
	if err != nil {
		if settledElsewhere(err) {
			return "skipped", nil
		}
		return r.retryLater(ctx, attempt, err)
	}

	// A failed publish stays in the outbox for the relay.
	if err := r.announcer.Announce(ctx, msg); err != nil {
		r.logger.Warn("recovered payment not yet announced",
			"attempt_id", attempt.ID,
			"outbox_id", msg.ID,
			"error", err,
		)
	}
	return "recorded", nil
}

func (r *Reconciler) decline(ctx context.Context, attempt *domain.ChargeAttempt, reason string) (string, error) {
	if err := attempt.MarkDeclined(reason); err != nil {
		return "failed", err
	}
	if err := r.attempts.Update(ctx, attempt); err != nil {
		if settledElsewhere(err) {
			return "skipped", nil
		}
		return "failed", fmt.Errorf("mark attempt declined: %w", err)
	}
	return "declined", nil
}

func (r *Reconciler) retryLater(ctx context.Context, attempt *domain.ChargeAttempt, cause error) (string, error) {
	attempt.ScheduleRetry(time.Duration(1<<min(attempt.AttemptCount, 6))*time.Minute, cause.Error())
	if err := r.attempts.Update(ctx, attempt); err != nil {
		if settledElsewhere(err) {
			return "skipped", nil
		}
		return "failed", fmt.Errorf("schedule retry: %w", err)
	}

	if attempt.AttemptCount >= r.maxRetries {
		r.logger.Error("MANUAL_RECONCILIATION_REQUIRED: charge attempt exhausted reconciliation",
			"attempt_id", attempt.ID,
			"order_id", attempt.OrderID,
			"status", attempt.Status,
			"amount", attempt.Amount.Amount,
			"currency", attempt.Amount.Currency,
			"attempts", attempt.AttemptCount,
			"error", cause,
		)
		return "manual", nil
	}
	return "retry", cause
}

func isNotFound(err error) bool {
	var procErr *application.ProcessorError
	if errors.As(err, &procErr) {
		return procErr.StatusCode == http.StatusNotFound
	}
	return false
}

// settledElsewhere means another writer moved the attempt after it was read;
// the next pass picks up whatever it became.
func settledElsewhere(err error) bool {
	return errors.Is(err, domain.ErrAttemptStateConflict)
}
