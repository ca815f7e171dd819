package rest

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
)

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps application and domain errors onto the error envelope.
// Server-side failures are logged with their cause; the client only sees the
// safe message.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status := application.ToHTTPStatus(err)
	code := application.ToErrorCode(err)

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			"code", code,
			"status", status,
			"error", err,
			"category", application.CategorizeError(err),
		)
	}

	RespondWithJSON(w, status, &ErrorDetail{
		Code:    code,
		Message: application.ToErrorMessage(err),
	})
}
