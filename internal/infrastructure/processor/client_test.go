package processor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *processor.HTTPProcessorClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return processor.NewProcessorClient(config.ProcessorConfig{
		BaseURL:       srv.URL,
		APIKey:        "sk_test",
		ConnTimeout:   2 * time.Second,
		ChargeTimeout: 2 * time.Second,
	})
}

func TestHTTPProcessorClient_Charge_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "att-1", r.Header.Get("Idempotency-Key"))

		var req application.ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2000), req.Amount)
		assert.Equal(t, "usd", req.Currency)
		assert.Equal(t, "tok_valid", req.Source)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(application.ChargeResponse{ID: "ch_123", Amount: 2000, Currency: "usd", Status: "succeeded"})
	})

	resp, err := client.Charge(context.Background(), application.ChargeRequest{Amount: 2000, Currency: "usd", Source: "tok_valid"}, "att-1")

	require.NoError(t, err)
	assert.Equal(t, "ch_123", resp.ID)
	assert.Equal(t, application.ChargeStatusSucceeded, resp.Status)
}

func TestHTTPProcessorClient_Charge_Decline(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := client.Charge(context.Background(), application.ChargeRequest{Amount: 2000, Currency: "usd", Source: "tok_bad"}, "att-1")

	procErr, ok := application.IsProcessorError(err)
	require.True(t, ok)
	assert.Equal(t, "card_declined", procErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, procErr.StatusCode)
	assert.True(t, procErr.IsDecline())
}

func TestHTTPProcessorClient_Charge_UnstructuredError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Charge(context.Background(), application.ChargeRequest{Amount: 1, Currency: "usd", Source: "tok"}, "att-1")

	procErr, ok := application.IsProcessorError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, procErr.StatusCode)
	assert.True(t, procErr.IsRetryable())
}

func TestHTTPProcessorClient_FindCharge(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges/search", r.URL.Path)
		if r.URL.Query().Get("idempotency_key") == "att-1" {
			_, _ = w.Write([]byte(`{"data":[{"id":"ch_123","amount":2000,"currency":"usd","status":"succeeded"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	found, err := client.FindCharge(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, "ch_123", found.ID)

	_, err = client.FindCharge(context.Background(), "att-2")
	procErr, ok := application.IsProcessorError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, procErr.StatusCode)
}
