package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mithun50/luma-cli/internal/domain"
	"github.com/mithun50/luma-cli/internal/usecase"
)

type apiErrorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{Error: apiError{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeActionError maps chat action failures onto HTTP statuses.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "MESSAGE_REQUIRED", "Message required", nil)
	case errors.Is(err, usecase.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrTransportClosed):
		writeError(w, http.StatusServiceUnavailable, "CDP_NOT_CONNECTED", "CDP not connected", nil)
	case errors.Is(err, domain.ErrNoViableContext):
		writeError(w, http.StatusBadGateway, "NO_VIABLE_CONTEXT", "no execution context produced a result", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "CDP_TIMEOUT", "CDP call timed out", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "CDP_ERROR", "CDP call failed", err.Error())
	}
}
