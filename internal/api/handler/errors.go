package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/pairplay/internal/api/apierr"
	"github.com/mcoot/pairplay/internal/middleware"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) error {
	return apierr.NewForbiddenError(message)
}

// failure writes err, logging it first when it maps to a server error.
// Client errors are already visible in the request log.
func failure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error, attrs ...any) {
	if apierr.Status(err) >= http.StatusInternalServerError {
		args := append([]any{
			slog.String("op", op),
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("error", err.Error()),
		}, attrs...)
		logger.Error("request failed", args...)
	}
	apierr.WriteError(w, err)
}
