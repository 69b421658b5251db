package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/store"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeStoreError maps store sentinels to 400/404 and logs everything else as
// an internal error.
func writeStoreError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, message string) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		logger.Error(message, zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}
