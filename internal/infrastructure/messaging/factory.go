package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
)

// NewPublisher builds the publisher for the configured driver. The returned
// func closes it and any connection it owns.
func NewPublisher(ctx context.Context, cfg config.BusConfig, logger *slog.Logger) (application.EventPublisher, func() error, error) {
	switch cfg.Driver {
	case "kafka":
		pub := NewKafkaPublisher(cfg.BrokerList())
		return pub, pub.Close, nil
	case "rabbitmq":
		conn, err := DialRabbit(ctx, cfg.RabbitURL, logger)
		if err != nil {
			return nil, nil, err
		}
		pub, err := NewRabbitPublisher(conn, cfg.Exchange)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return pub, func() error {
			_ = pub.Close()
			return conn.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
}

// NewSubscriber builds a subscriber for topics on the configured driver.
func NewSubscriber(ctx context.Context, cfg config.BusConfig, topics []string, logger *slog.Logger) (application.EventSubscriber, func() error, error) {
	switch cfg.Driver {
	case "kafka":
		sub := NewKafkaSubscriber(cfg.BrokerList(), cfg.GroupID, topics, cfg.HandlerRetries, cfg.HandlerRetryDelay, logger)
		return sub, func() error { return nil }, nil
	case "rabbitmq":
		conn, err := DialRabbit(ctx, cfg.RabbitURL, logger)
		if err != nil {
			return nil, nil, err
		}
		sub, err := NewRabbitSubscriber(conn, cfg.Exchange, cfg.Queue, topics, cfg.HandlerRetries, cfg.HandlerRetryDelay, logger)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return sub, conn.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
}
