package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleResolveExposureProtocol answers the protocol precedence query:
// room override first when site_id and room_id are supplied, bundled default
// otherwise, 404 when neither applies.
func (s *Server) handleResolveExposureProtocol(w http.ResponseWriter, r *http.Request) {
	procedureID := chi.URLParam(r, "procedureID")
	siteID := r.URL.Query().Get("site_id")
	roomID := r.URL.Query().Get("room_id")

	doc, err := s.opts.Resolver.Resolve(r.Context(), procedureID, siteID, roomID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if doc == nil {
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "no exposure protocol for procedure")
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}
