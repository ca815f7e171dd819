package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
)

// ChargeInitiator asks the processor to move money for one attempt.
type ChargeInitiator struct {
	processor application.ChargeProcessor
	timeout   time.Duration
	logger    *slog.Logger
}

func NewChargeInitiator(processor application.ChargeProcessor, timeout time.Duration, logger *slog.Logger) *ChargeInitiator {
	return &ChargeInitiator{
		processor: processor,
		timeout:   timeout,
		logger:    logger,
	}
}

// Charge returns the processor charge on success. Failures are either a
// ProcessorDeclined service error (no money moved) or ChargeOutcomeUnknown.
//
// The call is detached from the caller's cancellation: once sent, a charge
// runs to completion so its outcome can be recorded.
func (c *ChargeInitiator) Charge(ctx context.Context, attempt *domain.ChargeAttempt, token string) (*application.ChargeResponse, error) {
	chargeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req := application.ChargeRequest{
		Amount:      attempt.Amount.Amount,
		Currency:    attempt.Amount.Currency,
		Source:      token,
		Description: fmt.Sprintf("Payment for order %s", attempt.OrderID),
		Metadata: map[string]string{
			"order_id":   attempt.OrderID,
			"attempt_id": attempt.ID,
		},
	}

	resp, err := c.processor.Charge(chargeCtx, req, attempt.ID)
	if err != nil {
		return nil, c.classify(attempt, err)
	}

	switch {
	case resp == nil || resp.ID == "":
		return nil, application.NewChargeOutcomeUnknownError(errors.New("processor returned no charge id"))
	case resp.Status == application.ChargeStatusFailed:
		return nil, application.NewProcessorDeclinedError(&application.ProcessorError{
			Code:       resp.FailureCode,
			Message:    resp.FailureMessage,
			StatusCode: 402,
		})
	case resp.Status == application.ChargeStatusPending:
		return nil, application.NewChargeOutcomeUnknownError(fmt.Errorf("charge %s is still pending", resp.ID))
	}

	return resp, nil
}

func (c *ChargeInitiator) classify(attempt *domain.ChargeAttempt, err error) error {
	if procErr, ok := application.IsProcessorError(err); ok && procErr.IsDecline() {
		c.logger.Info("charge declined",
			"attempt_id", attempt.ID,
			"order_id", attempt.OrderID,
			"code", procErr.Code,
		)
		return application.NewProcessorDeclinedError(procErr)
	}

	c.logger.Warn("charge outcome unknown",
		"attempt_id", attempt.ID,
		"order_id", attempt.OrderID,
		"error", err,
	)
	return application.NewChargeOutcomeUnknownError(err)
}
