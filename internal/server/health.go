package server

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.opts.DB != nil && s.opts.DB.Configured() {
		resp["db"] = "ok"
		if database, err := s.opts.DB.DB(); err != nil {
			resp["db"] = "degraded"
		} else if err := database.PingContext(r.Context()); err != nil {
			resp["db"] = "degraded"
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
