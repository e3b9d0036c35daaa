package web

import (
	"encoding/json"
	"net/http"

	"github.com/omarelbidi/bankcore/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since the headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode", "error", err)
	}
}

// writeError writes a JSON error response with a client-safe message.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: message})
}

// respondStoreError logs the technical error and returns a sanitized
// 500 to the client. Store internals never reach the response body.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
	)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
