// Package mocks provides testify mocks for the application ports.
package mocks

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t testingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockOrderStore mocks application.OrderProjectionStore (and so OrderStore).
type MockOrderStore struct {
	mock.Mock
}

func NewMockOrderStore(t testingT) *MockOrderStore {
	m := &MockOrderStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockOrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *MockOrderStore) Insert(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	return m.Called(ctx, order, expectedVersion).Error(0)
}

func (m *MockOrderStore) ParkCancellation(ctx context.Context, orderID string, version int64) error {
	return m.Called(ctx, orderID, version).Error(0)
}

func (m *MockOrderStore) FindParkedCancellation(ctx context.Context, orderID string) (int64, error) {
	args := m.Called(ctx, orderID)
	version, _ := args.Get(0).(int64)
	return version, args.Error(1)
}

func (m *MockOrderStore) ClearParkedCancellation(ctx context.Context, orderID string, version int64) error {
	return m.Called(ctx, orderID, version).Error(0)
}

type MockPaymentStore struct {
	mock.Mock
}

func NewMockPaymentStore(t testingT) *MockPaymentStore {
	m := &MockPaymentStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockPaymentStore) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	payment, _ := args.Get(0).(*domain.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentStore) RecordWithOutbox(ctx context.Context, payment *domain.Payment, attempt *domain.ChargeAttempt, msg *domain.OutboxMessage) error {
	return m.Called(ctx, payment, attempt, msg).Error(0)
}

type MockAttemptStore struct {
	mock.Mock
}

func NewMockAttemptStore(t testingT) *MockAttemptStore {
	m := &MockAttemptStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockAttemptStore) Begin(ctx context.Context, attempt *domain.ChargeAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *MockAttemptStore) FindByKey(ctx context.Context, idempotencyKey string) (*domain.ChargeAttempt, error) {
	args := m.Called(ctx, idempotencyKey)
	attempt, _ := args.Get(0).(*domain.ChargeAttempt)
	return attempt, args.Error(1)
}

func (m *MockAttemptStore) Update(ctx context.Context, attempt *domain.ChargeAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *MockAttemptStore) FindReconcilable(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*domain.ChargeAttempt, error) {
	args := m.Called(ctx, olderThan, maxAttempts, limit)
	attempts, _ := args.Get(0).([]*domain.ChargeAttempt)
	return attempts, args.Error(1)
}

type MockOutboxStore struct {
	mock.Mock
}

func NewMockOutboxStore(t testingT) *MockOutboxStore {
	m := &MockOutboxStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockOutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration, maxRetries int) ([]*domain.OutboxMessage, error) {
	args := m.Called(ctx, relayID, batchSize, lease, maxRetries)
	msgs, _ := args.Get(0).([]*domain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *MockOutboxStore) MarkSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string, nextAttemptAt time.Time) error {
	return m.Called(ctx, id, errMsg, nextAttemptAt).Error(0)
}

type MockChargeProcessor struct {
	mock.Mock
}

func NewMockChargeProcessor(t testingT) *MockChargeProcessor {
	m := &MockChargeProcessor{}
	register(&m.Mock, t)
	return m
}

func (m *MockChargeProcessor) Charge(ctx context.Context, req application.ChargeRequest, idempotencyKey string) (*application.ChargeResponse, error) {
	args := m.Called(ctx, req, idempotencyKey)
	resp, _ := args.Get(0).(*application.ChargeResponse)
	return resp, args.Error(1)
}

func (m *MockChargeProcessor) FindCharge(ctx context.Context, idempotencyKey string) (*application.ChargeResponse, error) {
	args := m.Called(ctx, idempotencyKey)
	resp, _ := args.Get(0).(*application.ChargeResponse)
	return resp, args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func NewMockEventPublisher(t testingT) *MockEventPublisher {
	m := &MockEventPublisher{}
	register(&m.Mock, t)
	return m
}

func (m *MockEventPublisher) Publish(ctx context.Context, msg application.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockOrderLocker struct {
	mock.Mock
}

func NewMockOrderLocker(t testingT) *MockOrderLocker {
	m := &MockOrderLocker{}
	register(&m.Mock, t)
	return m
}

func (m *MockOrderLocker) Acquire(ctx context.Context, orderID string, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, orderID, ttl)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Error(1)
}

// NoopRelease is a release func for lock expectations.
func NoopRelease(context.Context) error { return nil }

type MockMessageDeduper struct {
	mock.Mock
}

func NewMockMessageDeduper(t testingT) *MockMessageDeduper {
	m := &MockMessageDeduper{}
	register(&m.Mock, t)
	return m
}

func (m *MockMessageDeduper) Seen(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageDeduper) Forget(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockEventSubscriber struct {
	mock.Mock
}

func NewMockEventSubscriber(t testingT) *MockEventSubscriber {
	m := &MockEventSubscriber{}
	register(&m.Mock, t)
	return m
}

func (m *MockEventSubscriber) Run(ctx context.Context, handler application.MessageHandler) error {
	return m.Called(ctx, handler).Error(0)
}
