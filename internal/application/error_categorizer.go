package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	// Projection ordering resolves itself once the earlier event lands.
	if errors.Is(err, domain.ErrOutOfOrderEvent) || errors.Is(err, domain.ErrVersionConflict) {
		return CategoryTransient
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeOrderNotFound, domain.ErrCodeMissingRequiredField, domain.ErrCodeInvalidEvent:
			return CategoryClientError
		default:
			return CategoryBusinessRule
		}
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeValidation, ErrCodeUnauthenticated, ErrCodeIdempotencyMismatch:
			return CategoryClientError
		case ErrCodeProcessorDeclined, ErrCodeOrderAlreadyPaid:
			return CategoryPermanent
		case ErrCodeInternal, ErrCodePaymentNotRecorded:
			return CategoryInfrastructure
		case ErrCodeRequestProcessing, ErrCodePaymentInProgress, ErrCodeTimeout,
			ErrCodeChargeOutcomeUnknown, ErrCodePublishFailed:
			return CategoryTransient
		}
	}

	if procErr, ok := IsProcessorError(err); ok {
		if procErr.IsRetryable() {
			return CategoryTransient
		}

		switch procErr.Code {
		case "card_declined", "insufficient_funds", "expired_card", "incorrect_cvc",
			"processing_error", "token_already_used", "invalid_token", "amount_too_small":
			return CategoryPermanent
		case "resource_missing", "charge_not_found":
			return CategoryClientError
		case "idempotency_key_in_use", "lock_timeout":
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	// Default: Transient (safe fallback)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeOrderNotFound:
			return http.StatusNotFound
		case domain.ErrCodeNotAuthorized:
			return http.StatusUnauthorized
		case domain.ErrCodeInvalidState,
			domain.ErrCodeInvalidAmount,
			domain.ErrCodeUnsupportedCurrency,
			domain.ErrCodeMissingRequiredField,
			domain.ErrCodeInvalidEvent:
			return http.StatusBadRequest
		case domain.ErrCodeInvalidTransition:
			return http.StatusConflict
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if procErr, ok := IsProcessorError(err); ok && procErr.IsDecline() {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if procErr, ok := IsProcessorError(err); ok {
		return "PROCESSOR_" + strings.ToUpper(procErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}

// ToErrorMessage is the client-safe message for err. Internal failures do
// not leak their cause.
func ToErrorMessage(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		if svcErr.Code == ErrCodeValidation && svcErr.Err != nil {
			return svcErr.Err.Error()
		}
		return svcErr.Message
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	if ToHTTPStatus(err) >= http.StatusInternalServerError {
		return "An internal error occurred"
	}
	return err.Error()
}
