package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON renders data with the given status. An encoding failure happens
// after the status line is already on the wire, so it can only be logged.
func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding response", "error", err)
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, errText, message string) {
	writeJSON(logger, w, status, ErrorResponse{Error: errText, Message: message})
}
