package domain

import "github.com/shopspring/decimal"

// Subjects exchanged with the rest of the platform.
const (
	TopicPaymentCreated = "payment:created"
	TopicOrderCreated   = "order:created"
	TopicOrderCancelled = "order:cancelled"
)

// PaymentCreatedEvent is announced once a payment is durably recorded.
// StripeID carries the processor charge reference; the field name is part
// of the published contract.
type PaymentCreatedEvent struct {
	ID       string `json:"id"`
	OrderID  string `json:"orderId"`
	StripeID string `json:"stripeId"`
}

func NewPaymentCreatedEvent(p *Payment) PaymentCreatedEvent {
	return PaymentCreatedEvent{
		ID:       p.ID,
		OrderID:  p.OrderID,
		StripeID: p.ChargeID,
	}
}

type EventTicket struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

type OrderCreatedEvent struct {
	ID       string      `json:"id"`
	Version  int64       `json:"version"`
	Status   OrderStatus `json:"status"`
	UserID   string      `json:"userId"`
	Currency string      `json:"currency,omitempty"`
	Ticket   EventTicket `json:"ticket"`
}

type OrderCancelledEvent struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}
