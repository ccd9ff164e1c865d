package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"radiobuddy/backend/internal/db"
)

// decodeJSON parses the request body into dst. The body size is already
// capped by MaxBodyMiddleware.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeValidationError answers 422 with the field-level messages.
func writeValidationError(w http.ResponseWriter, r *http.Request, messages ...string) {
	WriteError(w, r, http.StatusUnprocessableEntity, CategoryValidationError, messages)
}

// storeError maps persistence failures: an unconfigured store is a 503 the
// client may retry once a DSN is provisioned, anything else is a 500.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotConfigured) {
		WriteError(w, r, http.StatusServiceUnavailable, CategoryServiceUnavailable, "persistent store is not configured")
		return
	}
	s.logger.Error("store failure", "error", err, "request_id", RequestIDFromContext(r.Context()))
	WriteError(w, r, http.StatusInternalServerError, CategoryInternalError, "internal error")
}
