package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish keys messages by aggregate so one payment's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, msg application.Message) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   WireName(msg.Topic),
		Key:     []byte(msg.Key),
		Value:   msg.Payload,
		Headers: toKafkaHeaders(msg.Headers),
	})
	if err != nil {
		return fmt.Errorf("write %s to kafka: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type KafkaSubscriber struct {
	reader     *kafka.Reader
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewKafkaSubscriber(brokers []string, groupID string, topics []string, retries int, retryDelay time.Duration, logger *slog.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: wireNames(topics),
		}),
		retries:    retries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Run commits each message after handling it. A message failing with a
// retryable error is held, blocking its partition, until it is handled or
// ctx ends; only messages that can never be handled are logged and skipped.
func (s *KafkaSubscriber) Run(ctx context.Context, handler application.MessageHandler) error {
	defer s.reader.Close()

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		msg := application.Message{
			Topic:   PlatformName(m.Topic),
			Key:     string(m.Key),
			Payload: m.Value,
			Headers: fromKafkaHeaders(m.Headers),
		}

		if err := handleUntilSettled(ctx, handler, msg, s.retries, s.retryDelay, s.logger); err != nil {
			if ctx.Err() != nil {
				// Uncommitted, so the group redelivers it after restart.
				return nil
			}
			s.logger.Error("dropping kafka message that cannot be handled",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit kafka offset: %w", err)
		}
	}
}

func toKafkaHeaders(h map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func fromKafkaHeaders(h []kafka.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for _, hh := range h {
		headers[hh.Key] = string(hh.Value)
	}
	return headers
}
