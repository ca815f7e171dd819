package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeIdempotencyMismatch  = "IDEMPOTENCY_MISMATCH"
	ErrCodeRequestProcessing    = "REQUEST_PROCESSING"
	ErrCodePaymentInProgress    = "PAYMENT_IN_PROGRESS"
	ErrCodeOrderAlreadyPaid     = "ORDER_ALREADY_PAID"
	ErrCodeProcessorDeclined    = "PROCESSOR_DECLINED"
	ErrCodeChargeOutcomeUnknown = "CHARGE_OUTCOME_UNKNOWN"
	ErrCodePaymentNotRecorded   = "PAYMENT_NOT_RECORDED"
	ErrCodePublishFailed        = "PUBLISH_FAILED"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrLockNotAcquired is returned by OrderLocker when the order is busy.
var ErrLockNotAcquired = errors.New("order lock held by another request")

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Invalid request",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewUnauthenticatedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnauthenticated,
		Message:    "Caller identity is missing",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewIdempotencyMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyMismatch,
		Message:    "Idempotency key reused with different request parameters",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewRequestProcessingError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRequestProcessing,
		Message:    "Request is being processed. Please retry in a moment.",
		HTTPStatus: http.StatusConflict,
	}
}

func NewPaymentInProgressError(orderID string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentInProgress,
		Message:    fmt.Sprintf("A payment for order %s is already in progress", orderID),
		HTTPStatus: http.StatusConflict,
	}
}

func NewOrderAlreadyPaidError(orderID string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeOrderAlreadyPaid,
		Message:    fmt.Sprintf("Order %s has already been paid", orderID),
		HTTPStatus: http.StatusConflict,
	}
}

// NewProcessorDeclinedError wraps a definitive refusal. No money moved.
func NewProcessorDeclinedError(err *ProcessorError) *ServiceError {
	msg := "Payment was declined by the processor"
	if err != nil && err.Message != "" {
		msg = err.Message
	}
	return &ServiceError{
		Code:       ErrCodeProcessorDeclined,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// NewChargeOutcomeUnknownError is returned when the processor call ended
// without an answer. The charge may exist and is settled by reconciliation.
func NewChargeOutcomeUnknownError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeChargeOutcomeUnknown,
		Message:    "Charge outcome is not yet known. Do not retry with a new token.",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewRecorderError means the card was charged but the payment is not stored yet.
func NewRecorderError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentNotRecorded,
		Message:    "Payment was charged but could not be recorded",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewPublishError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePublishFailed,
		Message:    "Payment event could not be published",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewTimeoutError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTimeout,
		Message:    "Request timed out waiting for completion",
		HTTPStatus: http.StatusRequestTimeout,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// ProcessorError is a non-2xx answer from the card processor.
type ProcessorError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether replaying the same idempotent request is safe and useful.
func (e *ProcessorError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsDecline reports a definitive refusal: the processor answered and did not charge.
func (e *ProcessorError) IsDecline() bool {
	if e.StatusCode < 400 || e.StatusCode >= 500 {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return true
}

func IsProcessorError(err error) (*ProcessorError, bool) {
	var procErr *ProcessorError
	ok := errors.As(err, &procErr)
	return procErr, ok
}
