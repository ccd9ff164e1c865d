package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"radiobuddy/backend/internal/telemetry"
	"radiobuddy/backend/internal/telemetry/domain"
	"radiobuddy/backend/internal/telemetry/repository"
)

// telemetryEvent is the wire form of a telemetry event.
type telemetryEvent struct {
	EventID          string           `json:"event_id"`
	Timestamp        time.Time        `json:"timestamp"`
	SchemaVersion    string           `json:"schema_version"`
	EventType        domain.EventType `json:"event_type"`
	ProcedureID      string           `json:"procedure_id"`
	ProcedureVersion string           `json:"procedure_version,omitempty"`
	SessionID        string           `json:"session_id,omitempty"`
	StageID          string           `json:"stage_id,omitempty"`
	Device           json.RawMessage  `json:"device,omitempty"`
	Metrics          json.RawMessage  `json:"metrics,omitempty"`
	Prompt           json.RawMessage  `json:"prompt,omitempty"`
	Habitus          json.RawMessage  `json:"habitus,omitempty"`
	Exposure         json.RawMessage  `json:"exposure,omitempty"`
	Performance      json.RawMessage  `json:"performance,omitempty"`
	CreatedAt        *time.Time       `json:"created_at,omitempty"`
}

func (t *telemetryEvent) toDomain() *domain.Event {
	return &domain.Event{
		EventID:          t.EventID,
		Timestamp:        t.Timestamp,
		SchemaVersion:    t.SchemaVersion,
		EventType:        t.EventType,
		ProcedureID:      t.ProcedureID,
		ProcedureVersion: t.ProcedureVersion,
		SessionID:        t.SessionID,
		StageID:          t.StageID,
		Device:           t.Device,
		Metrics:          t.Metrics,
		Prompt:           t.Prompt,
		Habitus:          t.Habitus,
		Exposure:         t.Exposure,
		Performance:      t.Performance,
	}
}

func fromDomainEvent(e *domain.Event) telemetryEvent {
	out := telemetryEvent{
		EventID:          e.EventID,
		Timestamp:        e.Timestamp,
		SchemaVersion:    e.SchemaVersion,
		EventType:        e.EventType,
		ProcedureID:      e.ProcedureID,
		ProcedureVersion: e.ProcedureVersion,
		SessionID:        e.SessionID,
		StageID:          e.StageID,
		Device:           e.Device,
		Metrics:          e.Metrics,
		Prompt:           e.Prompt,
		Habitus:          e.Habitus,
		Exposure:         e.Exposure,
		Performance:      e.Performance,
	}
	if !e.CreatedAt.IsZero() {
		createdAt := e.CreatedAt
		out.CreatedAt = &createdAt
	}
	return out
}

// handleIngestTelemetry appends one event. Duplicates by event_id are a
// conflict; an accepted event is additionally forwarded to the OTel log
// pipeline without blocking the response.
func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var body telemetryEvent
	if err := decodeJSON(r, &body); err != nil {
		writeValidationError(w, r, "invalid JSON body: "+err.Error())
		return
	}

	event := body.toDomain()
	if err := event.Validate(); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	if err := s.opts.TelemetryRepo.Save(r.Context(), event); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			WriteError(w, r, http.StatusConflict, CategoryDuplicateEvent, "event_id already recorded")
			return
		}
		s.storeError(w, r, err)
		return
	}

	telemetry.EmitAsync(s.opts.Emitter, r.Context(), event)
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"event_id": event.EventID,
	})
}

// handleListTelemetry returns stored events newest first, optionally filtered
// by session.
func (s *Server) handleListTelemetry(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID != "" {
		if _, err := uuid.Parse(sessionID); err != nil {
			writeValidationError(w, r, "session_id must be a UUID")
			return
		}
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeValidationError(w, r, "limit must be an integer")
			return
		}
		limit = parsed
	}

	events, err := s.opts.TelemetryRepo.List(r.Context(), sessionID, limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	out := make([]telemetryEvent, 0, len(events))
	for _, e := range events {
		out = append(out, fromDomainEvent(e))
	}
	WriteJSON(w, http.StatusOK, out)
}
