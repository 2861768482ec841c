package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trellismart/backend/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// respondError is the single place domain errors become HTTP responses.
// Every error body has the same shape: {"error": message}.
func respondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "err", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
