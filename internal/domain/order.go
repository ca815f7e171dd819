package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the status strings published by the orders service.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusAwaitingPayment OrderStatus = "awaiting:payment"
	OrderStatusComplete        OrderStatus = "complete"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is the local replica of an order owned by the orders service.
type Order struct {
	ID        string
	UserID    string
	Price     decimal.Decimal
	Currency  string
	Status    OrderStatus
	Version   int64
	UpdatedAt time.Time
}

// NewOrderFromEvent builds the replica row for a freshly created order.
func NewOrderFromEvent(evt OrderCreatedEvent, defaultCurrency string) (*Order, error) {
	if evt.ID == "" {
		return nil, NewMissingRequiredFieldError("order id")
	}
	if evt.UserID == "" {
		return nil, NewMissingRequiredFieldError("user id")
	}
	if evt.Ticket.Price.IsNegative() {
		return nil, NewInvalidAmountError("order price cannot be negative")
	}

	currency := strings.ToLower(evt.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	if exp, ok := minorUnitExponents[currency]; ok && !wholeMinorUnits(evt.Ticket.Price, exp) {
		return nil, NewInvalidAmountError("order price has more precision than the currency allows")
	}

	status := evt.Status
	if status == "" {
		status = OrderStatusCreated
	}

	return &Order{
		ID:        evt.ID,
		UserID:    evt.UserID,
		Price:     evt.Ticket.Price,
		Currency:  currency,
		Status:    status,
		Version:   evt.Version,
		UpdatedAt: time.Now(),
	}, nil
}

// ApplyCancelled moves the replica to cancelled. Cancellation is final, so
// any newer version applies even if versions in between were never seen.
func (o *Order) ApplyCancelled(version int64) error {
	if version <= o.Version {
		return ErrOutOfOrderEvent
	}
	o.Status = OrderStatusCancelled
	o.Version = version
	o.UpdatedAt = time.Now()
	return nil
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}
