package handlers

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/go-playground/validator"
)

type PaymentCreator interface {
	CreatePayment(ctx context.Context, cmd services.CreatePaymentCommand) (*services.CreatePaymentResult, error)
}

// Pinger is satisfied by the postgres pool and the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handlers struct {
	payments PaymentCreator
	checks   map[string]Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(payments PaymentCreator, checks map[string]Pinger, logger *slog.Logger) *Handlers {
	return &Handlers{
		payments: payments,
		checks:   checks,
		validate: validator.New(),
		logger:   logger,
	}
}
