package domain

// CheckEligibility decides whether userID may pay for order right now.
// Ownership is checked before status so strangers learn nothing about the order.
func CheckEligibility(order *Order, userID string) error {
	if order == nil {
		return NewOrderNotFoundError("")
	}
	if !order.IsOwnedBy(userID) {
		return NewNotAuthorizedError()
	}

	switch order.Status {
	case OrderStatusCancelled:
		return NewInvalidStateError("cannot pay for a cancelled order")
	case OrderStatusComplete:
		return NewInvalidStateError("order has already been paid")
	}

	return nil
}
