package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
)

// handleWithRetry runs handler up to retries+1 times, backing off linearly
// while the error is retryable.
func handleWithRetry(ctx context.Context, handler application.MessageHandler, msg application.Message, retries int, delay time.Duration, logger *slog.Logger) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if !application.IsRetryable(err) || attempt == retries {
			break
		}

		logger.Warn("message handler failed, retrying",
			"topic", msg.Topic,
			"key", msg.Key,
			"attempt", attempt+1,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(attempt+1)):
		}
	}
	return err
}

// handleUntilSettled keeps msg in hand while the handler fails with a
// retryable error. It returns nil once handled, the error of a message that
// can never be handled, or ctx.Err() on shutdown.
func handleUntilSettled(ctx context.Context, handler application.MessageHandler, msg application.Message, retries int, delay time.Duration, logger *slog.Logger) error {
	for {
		err := handleWithRetry(ctx, handler, msg, retries, delay, logger)
		if err == nil || !application.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("message still failing, holding it for redelivery",
			"topic", msg.Topic,
			"key", msg.Key,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(retries+1)):
		}
	}
}
