package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeUnsupportedCurrency  = "UNSUPPORTED_CURRENCY"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidEvent         = "INVALID_EVENT"
)

var (
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrOutOfOrderEvent     = errors.New("event arrived out of order")
)

func NewOrderNotFoundError(orderID string) *DomainError {
	msg := "order not found"
	if orderID != "" {
		msg = fmt.Sprintf("order %s not found", orderID)
	}
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: msg,
	}
}

func NewNotAuthorizedError() *DomainError {
	return &DomainError{
		Code:    ErrCodeNotAuthorized,
		Message: "not authorized",
	}
}

func NewInvalidStateError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: message,
	}
}

func NewInvalidTransitionError(from, to AttemptStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

func NewInvalidAmountError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: reason,
		Err:     ErrInvalidAmount,
	}
}

func NewUnsupportedCurrencyError(currency string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnsupportedCurrency,
		Message: fmt.Sprintf("currency %q is not supported", currency),
		Err:     ErrUnsupportedCurrency,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidEventError(topic string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidEvent,
		Message: fmt.Sprintf("malformed %s event", topic),
		Err:     err,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
