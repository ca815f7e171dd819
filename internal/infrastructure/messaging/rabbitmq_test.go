package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRabbit(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestRabbit_PublishAndConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	url := startRabbit(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subConn, err := messaging.DialRabbit(ctx, url, logger)
	require.NoError(t, err)
	defer subConn.Close()
	sub, err := messaging.NewRabbitSubscriber(subConn, "platform", "payments-test", []string{domain.TopicPaymentCreated}, 1, time.Millisecond, logger)
	require.NoError(t, err)

	pubConn, err := messaging.DialRabbit(ctx, url, logger)
	require.NoError(t, err)
	defer pubConn.Close()
	pub, err := messaging.NewRabbitPublisher(pubConn, "platform")
	require.NoError(t, err)
	defer pub.Close()

	received := make(chan application.Message, 1)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, msg application.Message) error {
			received <- msg
			return nil
		})
	}()

	err = pub.Publish(ctx, application.Message{
		Topic:   domain.TopicPaymentCreated,
		Key:     "pay-1",
		Payload: []byte(`{"id":"pay-1","orderId":"o1","stripeId":"ch_123"}`),
		Headers: map[string]string{"order_id": "o1"},
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, domain.TopicPaymentCreated, msg.Topic)
		assert.Equal(t, "pay-1", msg.Key)
		assert.Equal(t, "o1", msg.Headers["order_id"])
		assert.JSONEq(t, `{"id":"pay-1","orderId":"o1","stripeId":"ch_123"}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestRabbit_InvalidEventIsDeadLettered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	url := startRabbit(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subConn, err := messaging.DialRabbit(ctx, url, logger)
	require.NoError(t, err)
	defer subConn.Close()
	sub, err := messaging.NewRabbitSubscriber(subConn, "platform", "orders-test", []string{domain.TopicOrderCancelled}, 1, time.Millisecond, logger)
	require.NoError(t, err)

	pubConn, err := messaging.DialRabbit(ctx, url, logger)
	require.NoError(t, err)
	defer pubConn.Close()
	pub, err := messaging.NewRabbitPublisher(pubConn, "platform")
	require.NoError(t, err)
	defer pub.Close()

	go func() {
		_ = sub.Run(ctx, func(context.Context, application.Message) error {
			return domain.NewInvalidEventError(domain.TopicOrderCancelled, errors.New("missing id"))
		})
	}()

	require.NoError(t, pub.Publish(ctx, application.Message{
		Topic:   domain.TopicOrderCancelled,
		Key:     "o1",
		Payload: []byte(`{"version":1}`),
	}))

	inspect, err := pubConn.Channel()
	require.NoError(t, err)
	defer inspect.Close()

	require.Eventually(t, func() bool {
		d, ok, err := inspect.Get(messaging.DeadLetterQueue("orders-test"), true)
		return err == nil && ok && string(d.Body) == `{"version":1}`
	}, 20*time.Second, 100*time.Millisecond)
}
