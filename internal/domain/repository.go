package domain

import "errors"

// Errors returned by persistence adapters. Callers match them with errors.Is.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAttemptNotFound = errors.New("charge attempt not found")

	// ErrDuplicateIdempotencyKey means a charge attempt already owns the key.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")

	// ErrOrderAttemptExists means another attempt that may have moved money
	// is already registered for the order.
	ErrOrderAttemptExists = errors.New("order already has a live charge attempt")

	// ErrAttemptStateConflict means the stored attempt left the status it
	// was loaded in before the update landed.
	ErrAttemptStateConflict = errors.New("charge attempt changed concurrently")

	ErrDuplicateOrder  = errors.New("order already exists")
	ErrVersionConflict = errors.New("order version conflict")

	// ErrNoParkedCancellation means no cancellation is waiting for the order.
	ErrNoParkedCancellation = errors.New("no parked cancellation")
)
