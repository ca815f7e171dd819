package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest/middleware"
)

type CreatePaymentRequest struct {
	Token   string `json:"token" validate:"required"`
	OrderID string `json:"orderId" validate:"required"`
}

type CreatePaymentResponse struct {
	ID string `json:"id"`
}

// CreatePayment handles payment creation
// @Summary Pay for an order
// @Description Validates the order, charges the token and records the payment
// @Tags payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Unique key for request idempotency"
// @Param X-User-Id header string true "Caller identity"
// @Param request body CreatePaymentRequest true "Payment request"
// @Success 201 {object} rest.APIResponse
// @Failure 400 {object} rest.APIResponse
// @Failure 401 {object} rest.APIResponse
// @Failure 404 {object} rest.APIResponse
// @Failure 409 {object} rest.APIResponse
// @Failure 422 {object} rest.APIResponse
// @Failure 504 {object} rest.APIResponse
// @Router /payments [post]
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		rest.WriteError(w, application.NewUnauthenticatedError(), h.logger)
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewValidationError(errors.New("invalid request body")), h.logger)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	result, err := h.payments.CreatePayment(r.Context(), services.CreatePaymentCommand{
		OrderID:        req.OrderID,
		Token:          req.Token,
		UserID:         userID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	rest.RespondWithJSON(w, status, CreatePaymentResponse{ID: result.PaymentID})
}
