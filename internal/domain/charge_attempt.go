package domain

import (
	"slices"
	"time"
)

// AttemptStatus tracks what we know about money movement for one charge.
type AttemptStatus string

const (
	// AttemptPending is reserved locally; the processor may or may not have been called.
	AttemptPending AttemptStatus = "PENDING"
	// AttemptCharged means the processor confirmed the charge but no Payment exists yet.
	AttemptCharged AttemptStatus = "CHARGED"
	// AttemptRecorded means the Payment and its event are durably stored.
	AttemptRecorded AttemptStatus = "RECORDED"
	// AttemptDeclined means the processor refused; no money moved.
	AttemptDeclined AttemptStatus = "DECLINED"
	// AttemptUnknown means the processor call ended without a definitive answer.
	AttemptUnknown AttemptStatus = "UNKNOWN"
)

// ChargeAttempt is the local journal entry written before calling the processor.
// Its ID doubles as the processor idempotency key.
type ChargeAttempt struct {
	ID             string
	IdempotencyKey string
	RequestHash    string
	OrderID        string
	UserID         string
	Amount         Money
	Status         AttemptStatus

	ChargeID  *string
	PaymentID *string
	LastError *string

	AttemptCount int
	NextRetryAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// stored is the status storage holds while unsaved transitions are pending.
	stored AttemptStatus
}

func NewChargeAttempt(id, idempotencyKey, requestHash, orderID, userID string, amount Money) (*ChargeAttempt, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("attempt id")
	}
	if idempotencyKey == "" {
		return nil, NewMissingRequiredFieldError("idempotency key")
	}
	if orderID == "" {
		return nil, NewMissingRequiredFieldError("order id")
	}
	if userID == "" {
		return nil, NewMissingRequiredFieldError("user id")
	}
	if amount.Amount <= 0 {
		return nil, NewInvalidAmountError("charge amount must be greater than zero")
	}

	now := time.Now().UTC()
	return &ChargeAttempt{
		ID:             id,
		IdempotencyKey: idempotencyKey,
		RequestHash:    requestHash,
		OrderID:        orderID,
		UserID:         userID,
		Amount:         amount,
		Status:         AttemptPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (a *ChargeAttempt) MarkCharged(chargeID string) error {
	if chargeID == "" {
		return NewMissingRequiredFieldError("charge id")
	}
	if err := a.transition(AttemptCharged); err != nil {
		return err
	}
	a.ChargeID = &chargeID
	a.LastError = nil
	return nil
}

func (a *ChargeAttempt) MarkDeclined(reason string) error {
	if err := a.transition(AttemptDeclined); err != nil {
		return err
	}
	a.LastError = &reason
	return nil
}

func (a *ChargeAttempt) MarkUnknown(reason string) error {
	if err := a.transition(AttemptUnknown); err != nil {
		return err
	}
	a.LastError = &reason
	return nil
}

func (a *ChargeAttempt) MarkRecorded(paymentID string) error {
	if paymentID == "" {
		return NewMissingRequiredFieldError("payment id")
	}
	if err := a.transition(AttemptRecorded); err != nil {
		return err
	}
	a.PaymentID = &paymentID
	a.NextRetryAt = nil
	return nil
}

// ScheduleRetry pushes the next reconciliation pass out by backoff.
func (a *ChargeAttempt) ScheduleRetry(backoff time.Duration, lastErr string) {
	a.AttemptCount++
	next := time.Now().UTC().Add(backoff)
	a.NextRetryAt = &next
	a.LastError = &lastErr
	a.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the attempt needs no further work.
func (a *ChargeAttempt) IsTerminal() bool {
	return a.Status == AttemptRecorded || a.Status == AttemptDeclined
}

// StoredStatus is the status the attempt had when it was loaded or last saved.
// Stores only apply an update while the row still has it.
func (a *ChargeAttempt) StoredStatus() AttemptStatus {
	if a.stored != "" {
		return a.stored
	}
	return a.Status
}

// MarkStored is called by stores once the current status is persisted.
func (a *ChargeAttempt) MarkStored() {
	a.stored = ""
}

func (a *ChargeAttempt) transition(target AttemptStatus) error {
	if err := a.canTransitionTo(target); err != nil {
		return err
	}
	if a.stored == "" {
		a.stored = a.Status
	}
	a.Status = target
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *ChargeAttempt) canTransitionTo(target AttemptStatus) error {
	switch a.Status {
	case AttemptPending:
		return a.allow(target, AttemptCharged, AttemptDeclined, AttemptUnknown)
	case AttemptUnknown:
		return a.allow(target, AttemptCharged, AttemptDeclined)
	case AttemptCharged:
		return a.allow(target, AttemptRecorded)
	}
	return NewInvalidTransitionError(a.Status, target)
}

func (a *ChargeAttempt) allow(target AttemptStatus, allowed ...AttemptStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(a.Status, target)
}
