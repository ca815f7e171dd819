package processor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
)

// RetryProcessorClient replays idempotent processor calls on 5xx and 429.
// Timeouts and transport errors are returned as-is: their outcome is unknown.
type RetryProcessorClient struct {
	inner      application.ChargeProcessor
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryProcessorClient(inner application.ChargeProcessor, cfg config.RetryConfig) *RetryProcessorClient {
	maxRetries := int(cfg.MaxRetries)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryProcessorClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
	}
}

func (r *RetryProcessorClient) Charge(ctx context.Context, req application.ChargeRequest, idempotencyKey string) (*application.ChargeResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ChargeResponse, error) {
		return r.inner.Charge(ctx, req, idempotencyKey)
	})
}

func (r *RetryProcessorClient) FindCharge(ctx context.Context, idempotencyKey string) (*application.ChargeResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ChargeResponse, error) {
		return r.inner.FindCharge(ctx, idempotencyKey)
	})
}

// Generic retry helper
func retry[T any](r *RetryProcessorClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	procErr, ok := application.IsProcessorError(err)
	return ok && procErr.IsRetryable()
}

// Backoff calculation with exponential delay and jitter
func (r *RetryProcessorClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(r.baseDelay) + 1))
	return base + jitter
}
