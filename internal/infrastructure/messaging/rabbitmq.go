package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeType = "topic"

	deadLetterSuffix = ".dead"
)

// DialRabbit connects with a short retry loop for broker startup.
func DialRabbit(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("failed to connect to rabbitmq", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare exchange: %w", err)
	}
	return nil
}

// RabbitPublisher publishes in confirm mode: Publish returns only after the
// broker has taken responsibility for the message.
type RabbitPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("could not enable publisher confirms: %w", err)
	}
	return &RabbitPublisher{ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg application.Message) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,          // exchange
		WireName(msg.Topic), // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Key,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         msg.Payload,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s to rabbitmq: %w", msg.Topic, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await rabbitmq confirm: %w", err)
	}
	if !acked {
		return errors.New("rabbitmq nacked message " + msg.Key)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

// RabbitSubscriber consumes a durable queue bound to the given topics.
type RabbitSubscriber struct {
	ch         *amqp.Channel
	queue      string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewRabbitSubscriber(conn *amqp.Connection, exchange, queue string, topics []string, retries int, retryDelay time.Duration, logger *slog.Logger) (*RabbitSubscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}

	deadLetters, err := declareDeadLetters(ch, queue)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": deadLetters},
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("could not declare queue: %w", err)
	}

	for _, key := range wireNames(topics) {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("could not bind queue to %s: %w", key, err)
		}
	}

	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("could not set qos: %w", err)
	}

	return &RabbitSubscriber{
		ch:         ch,
		queue:      q.Name,
		retries:    retries,
		retryDelay: retryDelay,
		logger:     logger,
	}, nil
}

// declareDeadLetters sets up queue+".dead" behind a fanout exchange of the
// same name and returns the exchange name.
func declareDeadLetters(ch *amqp.Channel, queue string) (string, error) {
	name := DeadLetterQueue(queue)

	if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("could not declare dead-letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("could not declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(name, "", name, false, nil); err != nil {
		return "", fmt.Errorf("could not bind dead-letter queue: %w", err)
	}
	return name, nil
}

// DeadLetterQueue names the queue that holds rejected deliveries of queue.
func DeadLetterQueue(queue string) string {
	return queue + deadLetterSuffix
}

// Run acks handled deliveries. Deliveries that failed with a retryable error
// are requeued; the rest are rejected into the dead-letter queue.
func (s *RabbitSubscriber) Run(ctx context.Context, handler application.MessageHandler) error {
	defer s.ch.Close()

	deliveries, err := s.ch.Consume(
		s.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			s.deliver(ctx, handler, d)
		}
	}
}

func (s *RabbitSubscriber) deliver(ctx context.Context, handler application.MessageHandler, d amqp.Delivery) {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if str, ok := v.(string); ok {
			headers[k] = str
		}
	}

	msg := application.Message{
		Topic:   PlatformName(d.RoutingKey),
		Key:     d.MessageId,
		Payload: d.Body,
		Headers: headers,
	}

	if err := handleWithRetry(ctx, handler, msg, s.retries, s.retryDelay, s.logger); err != nil {
		requeue := application.IsRetryable(err)
		s.logger.Error("rabbitmq delivery not handled",
			"routing_key", d.RoutingKey,
			"message_id", d.MessageId,
			"requeue", requeue,
			"error", err,
		)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			s.logger.Error("failed to nack delivery", "error", nackErr)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		s.logger.Error("failed to ack delivery", "error", err)
	}
}
