package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	t.Run("creates payment successfully", func(t *testing.T) {
		payment, err := domain.NewPayment("pay-123", "o1", "ch_123", "att-1")

		require.NoError(t, err)
		assert.Equal(t, "pay-123", payment.ID)
		assert.Equal(t, "o1", payment.OrderID)
		assert.Equal(t, "ch_123", payment.ChargeID)
		assert.Equal(t, "att-1", payment.AttemptID)
		assert.NotZero(t, payment.CreatedAt)
	})

	t.Run("rejects empty charge id", func(t *testing.T) {
		_, err := domain.NewPayment("pay-123", "o1", "", "att-1")

		assert.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
		assert.Contains(t, err.Error(), "charge id is required")
	})

	t.Run("rejects empty order id", func(t *testing.T) {
		_, err := domain.NewPayment("pay-123", "", "ch_123", "att-1")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "order id is required")
	})
}

func TestPaymentCreatedEvent_Wire(t *testing.T) {
	payment, err := domain.NewPayment("pay-123", "o1", "ch_123", "att-1")
	require.NoError(t, err)

	data, err := json.Marshal(domain.NewPaymentCreatedEvent(payment))
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"pay-123","orderId":"o1","stripeId":"ch_123"}`, string(data))
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		want    int64
		wantErr string
	}{
		{name: "whole dollars", price: "20", want: 2000},
		{name: "cents", price: "19.99", want: 1999},
		{name: "trailing zeros", price: "5.50", want: 550},
		{name: "zero", price: "0", wantErr: domain.ErrCodeInvalidAmount},
		{name: "negative", price: "-1", wantErr: domain.ErrCodeInvalidAmount},
		{name: "sub cent", price: "10.005", wantErr: domain.ErrCodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := domain.ToMinorUnits(decimal.RequireFromString(tt.price), "usd")
			if tt.wantErr != "" {
				assert.True(t, domain.IsErrorCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, money.Amount)
			assert.Equal(t, "usd", money.Currency)
		})
	}

	t.Run("zero exponent currency", func(t *testing.T) {
		money, err := domain.ToMinorUnits(decimal.RequireFromString("1500"), "JPY")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), money.Amount)
		assert.Equal(t, "jpy", money.Currency)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		_, err := domain.ToMinorUnits(decimal.RequireFromString("10"), "xyz")
		assert.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
	})
}
