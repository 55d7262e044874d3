package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/hub"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

// APIError carries the status and client-facing message for a failed request.
type APIError struct {
	Status   int
	Message  string
	Rejected []string
	Err      error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

func badRequest(msg string, err error) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg, Err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a response. Unknown errors are logged and hidden.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, hub.ErrClosed):
		apiErr = &APIError{Status: http.StatusServiceUnavailable, Message: "shutting down", Err: err}
	default:
		apiErr = &APIError{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
	}
	if apiErr.Status >= 500 {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, apiErr.Status, types.APIError{Error: apiErr.Message, Rejected: apiErr.Rejected})
}
