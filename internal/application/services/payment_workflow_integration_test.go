package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/mocks"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services/testhelpers"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/cache"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/processor"
	"github.com/DanielPopoola/ficmart-payment-service/internal/worker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// fakeProcessor is an in-process charges API that honours Idempotency-Key.
type fakeProcessor struct {
	mu      sync.Mutex
	charges map[string]fakeCharge
	calls   atomic.Int32
	delay   time.Duration
}

type fakeCharge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{charges: map[string]fakeCharge{}}
}

func (f *fakeProcessor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/charges":
		f.calls.Add(1)
		time.Sleep(f.delay)

		var req application.ChargeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		key := r.Header.Get("Idempotency-Key")

		f.mu.Lock()
		ch, ok := f.charges[key]
		if !ok {
			ch = fakeCharge{
				ID:       fmt.Sprintf("ch_%d", len(f.charges)+1),
				Amount:   req.Amount,
				Currency: req.Currency,
				Status:   application.ChargeStatusSucceeded,
			}
			f.charges[key] = ch
		}
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ch)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/charges/search":
		f.mu.Lock()
		ch, ok := f.charges[r.URL.Query().Get("idempotency_key")]
		f.mu.Unlock()

		data := []fakeCharge{}
		if ok {
			data = append(data, ch)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProcessor) seed(key string, ch fakeCharge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges[key] = ch
}

type PaymentWorkflowIntegrationSuite struct {
	suite.Suite
	testDB    *testhelpers.TestDatabase
	testRedis *testhelpers.TestRedis

	orders   *postgres.OrderRepository
	attempts *postgres.AttemptRepository
	payments *postgres.PaymentRepository
	outbox   *postgres.OutboxRepository

	processor  *fakeProcessor
	server     *httptest.Server
	publisher  *mocks.MockEventPublisher
	recorder   *services.PaymentRecorder
	announcer  *services.EventAnnouncer
	workflow   *services.PaymentWorkflow
	procClient *processor.HTTPProcessorClient
}

func TestPaymentWorkflowIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	suite.Run(t, new(PaymentWorkflowIntegrationSuite))
}

func (suite *PaymentWorkflowIntegrationSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.testRedis = testhelpers.SetupTestRedis(suite.T())
	suite.orders = postgres.NewOrderRepository(suite.testDB.DB)
	suite.attempts = postgres.NewAttemptRepository(suite.testDB.DB)
	suite.payments = postgres.NewPaymentRepository(suite.testDB.DB)
	suite.outbox = postgres.NewOutboxRepository(suite.testDB.DB)
}

func (suite *PaymentWorkflowIntegrationSuite) TearDownSuite() {
	suite.testRedis.Cleanup(suite.T())
	suite.testDB.Cleanup(suite.T())
}

func (suite *PaymentWorkflowIntegrationSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
	suite.testRedis.Flush(suite.T())

	suite.processor = newFakeProcessor()
	suite.server = httptest.NewServer(suite.processor)
	suite.procClient = processor.NewProcessorClient(config.ProcessorConfig{
		BaseURL:     suite.server.URL,
		APIKey:      "sk_test",
		ConnTimeout: 5 * time.Second,
	})

	logger := discardLogger()
	suite.publisher = mocks.NewMockEventPublisher(suite.T())
	suite.recorder = services.NewPaymentRecorder(suite.payments, time.Minute, logger)
	suite.announcer = services.NewEventAnnouncer(suite.publisher, suite.outbox, time.Second, 5, nil, logger)
	suite.workflow = services.NewPaymentWorkflow(
		services.NewOrderLookup(suite.orders),
		services.NewChargeInitiator(suite.procClient, 5*time.Second, logger),
		suite.recorder,
		suite.announcer,
		suite.attempts,
		suite.payments,
		cache.NewOrderLock(suite.testRedis.Client),
		nil,
		30*time.Second,
		logger,
	)
}

func (suite *PaymentWorkflowIntegrationSuite) TearDownTest() {
	suite.server.Close()
}

// ============================================================================
// Helpers
// ============================================================================

func (suite *PaymentWorkflowIntegrationSuite) outboxStatus(ctx context.Context, aggregateID string) (string, int) {
	var status string
	var retries int
	err := suite.testDB.DB.Pool.QueryRow(ctx,
		`SELECT status, retry_count FROM outbox WHERE aggregate_id = $1`, aggregateID,
	).Scan(&status, &retries)
	suite.Require().NoError(err)
	return status, retries
}

func (suite *PaymentWorkflowIntegrationSuite) expectPublish(orderID string) {
	suite.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(m application.Message) bool {
		var evt domain.PaymentCreatedEvent
		return m.Topic == domain.TopicPaymentCreated &&
			json.Unmarshal(m.Payload, &evt) == nil &&
			evt.OrderID == orderID && evt.ID == m.Key
	})).Return(nil).Once()
}

// ============================================================================
// END TO END
// ============================================================================

func (suite *PaymentWorkflowIntegrationSuite) Test_CreatePayment_RecordsAndAnnounces() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)
	suite.expectPublish(order.ID)

	result, err := suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
		OrderID:        order.ID,
		Token:          "tok_valid",
		UserID:         "u1",
		IdempotencyKey: "idem-e2e",
	})
	suite.Require().NoError(err)

	payment, err := suite.payments.FindByOrderID(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(result.PaymentID, payment.ID)
	suite.Equal("ch_1", payment.ChargeID)

	attempt, err := suite.attempts.FindByKey(ctx, "idem-e2e")
	suite.Require().NoError(err)
	suite.Equal(domain.AttemptRecorded, attempt.Status)
	suite.Equal(int64(2000), attempt.Amount.Amount)
	suite.Equal("usd", attempt.Amount.Currency)

	status, _ := suite.outboxStatus(ctx, payment.ID)
	suite.Equal("sent", status)
	suite.Equal(int32(1), suite.processor.calls.Load())
}

func (suite *PaymentWorkflowIntegrationSuite) Test_CreatePayment_ReplayDoesNotChargeTwice() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)
	suite.expectPublish(order.ID)

	cmd := services.CreatePaymentCommand{OrderID: order.ID, Token: "tok_valid", UserID: "u1", IdempotencyKey: "idem-replay"}
	first, err := suite.workflow.CreatePayment(ctx, cmd)
	suite.Require().NoError(err)

	second, err := suite.workflow.CreatePayment(ctx, cmd)
	suite.Require().NoError(err)

	suite.True(second.Replayed)
	suite.Equal(first.PaymentID, second.PaymentID)
	suite.Equal(int32(1), suite.processor.calls.Load())
}

func (suite *PaymentWorkflowIntegrationSuite) Test_CreatePayment_ConcurrentRequestsChargeOnce() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)
	suite.processor.delay = 200 * time.Millisecond
	suite.expectPublish(order.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
				OrderID: order.ID,
				Token:   fmt.Sprintf("tok_%d", i),
				UserID:  "u1",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		svcErr, ok := application.IsServiceError(err)
		suite.Require().True(ok, "unexpected error: %v", err)
		suite.Contains([]string{application.ErrCodePaymentInProgress, application.ErrCodeOrderAlreadyPaid}, svcErr.Code)
	}
	suite.Equal(1, succeeded)
	suite.Equal(int32(1), suite.processor.calls.Load())
}

func (suite *PaymentWorkflowIntegrationSuite) Test_PublishFailure_RelayDeliversLater() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)

	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable")).Once()

	result, err := suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
		OrderID: order.ID, Token: "tok_valid", UserID: "u1",
	})
	suite.Require().NoError(err, "a committed payment is returned even when the event is delayed")

	status, retries := suite.outboxStatus(ctx, result.PaymentID)
	suite.Equal("failed", status)
	suite.Equal(1, retries)

	_, err = suite.testDB.DB.Pool.Exec(ctx, `UPDATE outbox SET next_attempt_at = now() - interval '1 second'`)
	suite.Require().NoError(err)

	suite.expectPublish(order.ID)
	relay := worker.NewOutboxRelay(suite.outbox, suite.announcer, "relay-test", time.Second, 10, 30*time.Second, 5, discardLogger())
	suite.Equal(1, relay.RunOnce(ctx))

	status, _ = suite.outboxStatus(ctx, result.PaymentID)
	suite.Equal("sent", status)
}

func (suite *PaymentWorkflowIntegrationSuite) Test_Reconciler_RecoversChargeWithoutPayment() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)

	// The request died after the processor charged but before anything else was stored.
	attempt := testhelpers.NewPendingAttempt(suite.T(), order)
	suite.Require().NoError(suite.attempts.Begin(ctx, attempt))
	suite.processor.seed(attempt.ID, fakeCharge{ID: "ch_lost", Amount: 2000, Currency: "usd", Status: application.ChargeStatusSucceeded})

	_, err := suite.testDB.DB.Pool.Exec(ctx,
		`UPDATE charge_attempts SET updated_at = now() - interval '10 minutes' WHERE id = $1`, attempt.ID)
	suite.Require().NoError(err)

	suite.expectPublish(order.ID)
	reconciler := worker.NewReconciler(suite.attempts, suite.procClient, suite.recorder, suite.announcer,
		time.Minute, time.Minute, 5, 10, nil, discardLogger())
	reconciler.RunOnce(ctx)

	payment, err := suite.payments.FindByOrderID(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal("ch_lost", payment.ChargeID)

	recovered, err := suite.attempts.FindByID(ctx, attempt.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.AttemptRecorded, recovered.Status)
}

func (suite *PaymentWorkflowIntegrationSuite) Test_Reconciler_DeclinesAttemptUnknownToProcessor() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)

	attempt := testhelpers.NewPendingAttempt(suite.T(), order)
	suite.Require().NoError(suite.attempts.Begin(ctx, attempt))
	_, err := suite.testDB.DB.Pool.Exec(ctx,
		`UPDATE charge_attempts SET updated_at = now() - interval '10 minutes' WHERE id = $1`, attempt.ID)
	suite.Require().NoError(err)

	reconciler := worker.NewReconciler(suite.attempts, suite.procClient, suite.recorder, suite.announcer,
		time.Minute, time.Minute, 5, 10, nil, discardLogger())
	reconciler.RunOnce(ctx)

	declined, err := suite.attempts.FindByID(ctx, attempt.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.AttemptDeclined, declined.Status)

	// A declined attempt frees the order for a new payment.
	suite.expectPublish(order.ID)
	_, err = suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
		OrderID: order.ID, Token: "tok_retry", UserID: order.UserID,
	})
	suite.NoError(err)
}

// ============================================================================
// ORDER REPLICA
// ============================================================================

func (suite *PaymentWorkflowIntegrationSuite) orderMessage(topic string, evt any) application.Message {
	payload, err := json.Marshal(evt)
	suite.Require().NoError(err)
	return application.Message{Topic: topic, Payload: payload}
}

func (suite *PaymentWorkflowIntegrationSuite) Test_CancelBeforeCreate_OrderCannotBePaid() {
	ctx := context.Background()
	projector := worker.NewOrderProjector(
		mocks.NewMockEventSubscriber(suite.T()),
		services.NewOrderProjection(suite.orders, domain.DefaultCurrency, discardLogger()),
		cache.NewDedupe(suite.testRedis.Client, time.Hour),
		nil,
		discardLogger(),
	)

	created := testhelpers.DefaultOrderCreatedEvent()
	cancelled := domain.OrderCancelledEvent{ID: created.ID, Version: created.Version + 1}

	suite.Require().NoError(projector.Handle(ctx, suite.orderMessage(domain.TopicOrderCancelled, cancelled)))
	_, err := suite.orders.FindByID(ctx, created.ID)
	suite.Require().ErrorIs(err, domain.ErrOrderNotFound)

	suite.Require().NoError(projector.Handle(ctx, suite.orderMessage(domain.TopicOrderCreated, created)))

	order, err := suite.orders.FindByID(ctx, created.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusCancelled, order.Status)
	suite.Equal(cancelled.Version, order.Version)

	_, err = suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
		OrderID: created.ID, Token: "tok_valid", UserID: created.UserID,
	})
	suite.Require().Error(err)
	suite.Equal(domain.ErrCodeInvalidState, application.ToErrorCode(err))
	suite.Zero(suite.processor.calls.Load())
}

// ============================================================================
// CONCURRENT SETTLEMENT
// ============================================================================

func (suite *PaymentWorkflowIntegrationSuite) Test_LateChargeCannotOverwriteReconcilerDecision() {
	ctx := context.Background()
	order := testhelpers.SeedOrder(suite.T(), ctx, suite.testDB.DB, "u1", 20)
	suite.processor.delay = time.Second

	done := make(chan error, 1)
	go func() {
		_, err := suite.workflow.CreatePayment(ctx, services.CreatePaymentCommand{
			OrderID: order.ID, Token: "tok_valid", UserID: "u1", IdempotencyKey: "idem-race",
		})
		done <- err
	}()

	suite.Require().Eventually(func() bool {
		_, err := suite.attempts.FindByKey(ctx, "idem-race")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// Zero grace lets the reconciler see the attempt while its charge is in flight.
	reconciler := worker.NewReconciler(suite.attempts, suite.procClient, suite.recorder, suite.announcer,
		time.Minute, 0, 5, 10, nil, discardLogger())
	reconciler.RunOnce(ctx)

	select {
	case err := <-done:
		suite.Require().Error(err)
		suite.Equal(application.ErrCodePaymentNotRecorded, application.ToErrorCode(err))
	case <-time.After(10 * time.Second):
		suite.FailNow("workflow did not return")
	}

	attempt, err := suite.attempts.FindByKey(ctx, "idem-race")
	suite.Require().NoError(err)
	suite.Equal(domain.AttemptDeclined, attempt.Status)
	suite.Nil(attempt.ChargeID)

	_, err = suite.payments.FindByOrderID(ctx, order.ID)
	suite.ErrorIs(err, domain.ErrPaymentNotFound)
}
