package httputils

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// HandleAPIResponse writes resp as JSON with the given status, or err as a
// plain-text error with that status.
func HandleAPIResponse(w http.ResponseWriter, r *http.Request, resp interface{}, err error, status int) {
	if err != nil {
		slog.ErrorContext(r.Context(), "API error",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		http.Error(w, err.Error(), status)
		return
	}
	json, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode response",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
	}
	w.Write(json)
}

// DecodeJSON reads the request body into dest.
func DecodeJSON(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
