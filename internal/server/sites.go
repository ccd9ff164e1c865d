package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"radiobuddy/backend/internal/procedures"
	"radiobuddy/backend/internal/schema"
	"radiobuddy/backend/internal/sitepresets/domain"
	"radiobuddy/backend/internal/sitepresets/repository"
)

type siteResponse struct {
	SiteID    string    `json:"site_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type roomResponse struct {
	SiteID    string    `json:"site_id"`
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type protocolResponse struct {
	SiteID      string         `json:"site_id"`
	RoomID      string         `json:"room_id"`
	ProcedureID string         `json:"procedure_id"`
	Payload     map[string]any `json:"payload"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toSiteResponse(site *domain.Site) siteResponse {
	return siteResponse{SiteID: site.SiteID, Name: site.Name, CreatedAt: site.CreatedAt}
}

func toRoomResponse(room *domain.Room) roomResponse {
	return roomResponse{SiteID: room.SiteID, RoomID: room.RoomID, Name: room.Name, CreatedAt: room.CreatedAt}
}

func toProtocolResponse(rec *domain.RoomExposureProtocol) protocolResponse {
	return protocolResponse{
		SiteID:      rec.SiteID,
		RoomID:      rec.RoomID,
		ProcedureID: rec.ProcedureID,
		Payload:     rec.Payload,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SiteID string `json:"site_id"`
		Name   string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeValidationError(w, r, "invalid JSON body: "+err.Error())
		return
	}

	site, err := s.opts.Presets.CreateSite(r.Context(), body.SiteID, body.Name)
	var fieldErr *domain.ValidationError
	switch {
	case err == nil:
		WriteJSON(w, http.StatusCreated, toSiteResponse(site))
	case errors.Is(err, repository.ErrSiteExists):
		WriteError(w, r, http.StatusConflict, CategoryHTTPError, "site already exists")
	case errors.As(err, &fieldErr):
		writeValidationError(w, r, fieldErr.Error())
	default:
		s.storeError(w, r, err)
	}
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.opts.Presets.ListSites(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	out := make([]siteResponse, 0, len(sites))
	for _, site := range sites {
		out = append(out, toSiteResponse(site))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Presets.DeleteSite(r.Context(), chi.URLParam(r, "siteID")); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	var body struct {
		RoomID string `json:"room_id"`
		Name   string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeValidationError(w, r, "invalid JSON body: "+err.Error())
		return
	}

	room, err := s.opts.Presets.CreateRoom(r.Context(), siteID, body.RoomID, body.Name)
	var fieldErr *domain.ValidationError
	switch {
	case err == nil:
		WriteJSON(w, http.StatusCreated, toRoomResponse(room))
	case errors.Is(err, repository.ErrRoomExists):
		WriteError(w, r, http.StatusConflict, CategoryHTTPError, "room already exists")
	case errors.Is(err, repository.ErrSiteNotFound):
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "site not found")
	case errors.As(err, &fieldErr):
		writeValidationError(w, r, fieldErr.Error())
	default:
		s.storeError(w, r, err)
	}
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.opts.Presets.ListRooms(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomResponse(room))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	roomID := chi.URLParam(r, "roomID")
	if err := s.opts.Presets.DeleteRoom(r.Context(), siteID, roomID); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertRoomProtocol replaces the room's protocol for one procedure.
// The payload is stamped with the key triple and must pass the exposure
// protocol schema before anything is written.
func (s *Server) handleUpsertRoomProtocol(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	roomID := chi.URLParam(r, "roomID")
	procedureID := procedures.Normalize(chi.URLParam(r, "procedureID"))

	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		writeValidationError(w, r, "invalid JSON body: "+err.Error())
		return
	}

	rec, err := s.opts.Presets.UpsertProtocol(r.Context(), siteID, roomID, procedureID, payload)
	var schemaErr *schema.ValidationError
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, toProtocolResponse(rec))
	case errors.As(err, &schemaErr):
		WriteError(w, r, http.StatusUnprocessableEntity, CategorySchemaValidation, map[string]string{
			"schema":  schemaErr.SchemaName,
			"message": schemaErr.Message,
			"path":    schemaErr.Path,
		})
	case errors.Is(err, repository.ErrRoomNotFound):
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "room not found")
	case errors.Is(err, repository.ErrSiteNotFound):
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "site not found")
	default:
		s.storeError(w, r, err)
	}
}

func (s *Server) handleGetRoomProtocol(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	roomID := chi.URLParam(r, "roomID")
	procedureID := procedures.Normalize(chi.URLParam(r, "procedureID"))

	rec, err := s.opts.Presets.GetProtocol(r.Context(), siteID, roomID, procedureID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if rec == nil {
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "no protocol override for room")
		return
	}
	WriteJSON(w, http.StatusOK, toProtocolResponse(rec))
}
