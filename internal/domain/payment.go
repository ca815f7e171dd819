// Package domain holds the payment initiation model: orders as seen by this
// service, charge attempts and the payments they produce.
package domain

import (
	"time"
)

// Payment records that an order was successfully charged. It is immutable
// once created.
type Payment struct {
	ID        string
	OrderID   string
	ChargeID  string
	AttemptID string
	CreatedAt time.Time
}

func NewPayment(id, orderID, chargeID, attemptID string) (*Payment, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("payment id")
	}
	if orderID == "" {
		return nil, NewMissingRequiredFieldError("order id")
	}
	if chargeID == "" {
		return nil, NewMissingRequiredFieldError("charge id")
	}
	if attemptID == "" {
		return nil, NewMissingRequiredFieldError("attempt id")
	}

	return &Payment{
		ID:        id,
		OrderID:   orderID,
		ChargeID:  chargeID,
		AttemptID: attemptID,
		CreatedAt: time.Now().UTC(),
	}, nil
}
