package server

import "github.com/go-chi/chi/v5"

func (s *Server) registerRoutes(r chi.Router) {
	requireAdmin := AdminKeyMiddleware(s.opts.AdminAPIKey)

	r.Get("/health", s.handleHealth)

	// Positioning rules and exposure protocols
	r.Get("/procedure-rules/{procedureID}", s.handleGetProcedureRules)
	r.Get("/exposure-protocols/{procedureID}", s.handleResolveExposureProtocol)

	// Site presets. Reads are open; mutations require the admin key.
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", s.handleListSites)
		r.With(requireAdmin).Post("/", s.handleCreateSite)
		r.With(requireAdmin).Delete("/{siteID}", s.handleDeleteSite)

		r.Route("/{siteID}/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)
			r.With(requireAdmin).Post("/", s.handleCreateRoom)
			r.With(requireAdmin).Delete("/{roomID}", s.handleDeleteRoom)

			r.Route("/{roomID}/exposure-protocols/{procedureID}", func(r chi.Router) {
				r.Get("/", s.handleGetRoomProtocol)
				r.With(requireAdmin).Put("/", s.handleUpsertRoomProtocol)
			})
		})
	})

	// Telemetry
	r.Post("/telemetry/events", s.handleIngestTelemetry)
	r.Get("/telemetry/events", s.handleListTelemetry)

	// AI positioning assist
	r.Post("/ai/positioning/analyze", s.handleAnalyzePositioning)
}
