package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/caro-api/internal/api/shared"
	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/store"
)

// MapErrorToStatusCode maps service errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	case store.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the envelope error code for status.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return shared.CodeInvalidRequest
	case http.StatusNotFound:
		return shared.CodeNotFound
	default:
		return shared.CodeInternalError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
// Validation messages are built from field names only and are passed
// through; everything else gets a fixed message.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, store.ErrReviewRecordNotFound):
		return "Review record not found"
	case errors.Is(err, store.ErrDailyStatNotFound):
		return "No study recorded for this date"
	case store.IsNotFoundError(err):
		return "Resource not found"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the envelope for a service error and logs it.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	shared.RespondWithErrorAndLog(w, r, status, errorCode(status), GetSafeErrorMessage(err), err)
}

// respondInvalidRequest writes a 400 with a message safe to show.
func respondInvalidRequest(w http.ResponseWriter, r *http.Request, message string, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, shared.CodeInvalidRequest, message, err)
}
