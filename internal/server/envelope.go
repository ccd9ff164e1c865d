package server

import (
	"encoding/json"
	"net/http"
)

// Error categories carried in the envelope's error field.
const (
	CategoryHTTPError          = "http_error"
	CategoryValidationError    = "validation_error"
	CategorySchemaValidation   = "schema_validation_error"
	CategoryDuplicateEvent     = "duplicate_event"
	CategoryServiceUnavailable = "service_unavailable"
	CategoryInternalError      = "internal_error"
)

// ErrorResponse is the uniform error envelope for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    any    `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError sends the error envelope. detail may be a string or a structured
// value such as a list of field errors.
func WriteError(w http.ResponseWriter, r *http.Request, status int, category string, detail any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     category,
		Detail:    detail,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// WriteJSON sends a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
