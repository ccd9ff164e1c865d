package server

import (
	"net/http"

	"radiobuddy/backend/internal/aiassist"
)

// handleAnalyzePositioning returns one coaching instruction for a metrics
// snapshot. Analysis is fail-open: a broken inference backend degrades to the
// local instruction table, never to an error response.
func (s *Server) handleAnalyzePositioning(w http.ResponseWriter, r *http.Request) {
	var in aiassist.AnalyzeInput
	if err := decodeJSON(r, &in); err != nil {
		writeValidationError(w, r, "invalid JSON body: "+err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, s.opts.Assist.Analyze(r.Context(), in))
}
