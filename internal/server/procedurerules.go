package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"radiobuddy/backend/internal/procedures"
	"radiobuddy/backend/internal/resources"
)

// handleGetProcedureRules serves the versioned positioning rules for a
// procedure. The identifier is normalized first, so legacy spellings like
// "chest-pa" reach the canonical chest_pa_erect document.
func (s *Server) handleGetProcedureRules(w http.ResponseWriter, r *http.Request) {
	procedureID := procedures.Normalize(chi.URLParam(r, "procedureID"))
	if procedureID != procedures.ChestPAErect {
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "no positioning rules for procedure")
		return
	}

	rules, err := resources.DefaultProcedureRules()
	if err != nil {
		s.logger.Error("bundled rules unavailable", "error", err)
		WriteError(w, r, http.StatusInternalServerError, CategoryInternalError, "internal error")
		return
	}
	WriteJSON(w, http.StatusOK, rules)
}
