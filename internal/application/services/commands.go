package services

// CreatePaymentCommand is one request to pay for an order. UserID comes from
// the authenticated caller, never from the request body.
type CreatePaymentCommand struct {
	OrderID        string `validate:"required,max=128"`
	Token          string `validate:"required,max=255"`
	UserID         string `validate:"required,max=128"`
	IdempotencyKey string `validate:"omitempty,max=255"`
}

type CreatePaymentResult struct {
	PaymentID string
	// Replayed is set when the result comes from an earlier identical request.
	Replayed bool
}
