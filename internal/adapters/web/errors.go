package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoicing-service/internal/core"
	"invoicing-service/internal/logging"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error onto its HTTP status, error code and public message.
// Anything unrecognised is an internal error whose detail stays in the log.
func classify(err error) (status int, code, message string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "VALIDATION_ERROR", ve.Error()
	case errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound, "NOT_FOUND", "item not found"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", err.Error()
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict, "CONFLICT", "username already taken"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// fail writes the error response for err, logging internal failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		logging.LogError(h.log, "web", funcName, "request_id="+requestIDFromContext(r.Context()), r.URL.Path, err)
	}
	writeError(w, r, message, code, status)
}
