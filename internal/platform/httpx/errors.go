package httpx

import (
	"errors"
	"net/http"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Render failures deliberately carry no detail: the caller gets a generic
// failure, never a partial document or an internal message.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, shared.ErrRenderFailure):
		Problem(w, http.StatusInternalServerError, "Document Generation Failed", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
