// Package domain holds the telemetry event entity: an immutable, append-only
// fact emitted by a client during a positioning workflow.
package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the points of the positioning workflow a client may report.
type EventType string

const (
	EventSessionStart        EventType = "session_start"
	EventSessionEnd          EventType = "session_end"
	EventPromptEmitted       EventType = "prompt_emitted"
	EventReadyStateEntered   EventType = "ready_state_entered"
	EventHabitusEstimated    EventType = "habitus_estimated"
	EventHabitusOverridden   EventType = "habitus_overridden"
	EventExposureSuggested   EventType = "exposure_suggested"
	EventVisionLowConfidence EventType = "vision_low_confidence"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventSessionStart, EventSessionEnd, EventPromptEmitted,
		EventReadyStateEntered, EventHabitusEstimated, EventHabitusOverridden,
		EventExposureSuggested, EventVisionLowConfidence:
		return true
	}
	return false
}

var (
	schemaVersionPattern = regexp.MustCompile(`^v\d+$`)
	procedureIDPattern   = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Event is one telemetry fact. EventID is caller-supplied and globally
// unique; CreatedAt is stamped by the server and is distinct from the
// client-supplied Timestamp. Events are never mutated after insertion.
type Event struct {
	EventID       string
	Timestamp     time.Time
	SchemaVersion string
	EventType     EventType
	ProcedureID   string

	ProcedureVersion string // optional
	SessionID        string // optional UUID
	StageID          string // optional

	// Optional sub-documents, preserved verbatim as JSON.
	Device      json.RawMessage
	Metrics     json.RawMessage
	Prompt      json.RawMessage
	Habitus     json.RawMessage
	Exposure    json.RawMessage
	Performance json.RawMessage

	CreatedAt time.Time
}

// Validate validates the event for persistence. Returns an error describing the first validation failure.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	// Both ids are UUID columns in the store; reject bad ones here so the
	// caller gets a validation failure, not a cast error from Postgres.
	if _, err := uuid.Parse(e.EventID); err != nil {
		return errors.New("event_id must be a UUID")
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	if !schemaVersionPattern.MatchString(e.SchemaVersion) {
		return errors.New("schema_version must match v<digits>")
	}
	if !e.EventType.Valid() {
		return errors.New("unknown event_type")
	}
	if !procedureIDPattern.MatchString(e.ProcedureID) {
		return errors.New("procedure_id must match [a-z0-9_]+")
	}
	if e.SessionID != "" {
		if _, err := uuid.Parse(e.SessionID); err != nil {
			return errors.New("session_id must be a UUID")
		}
	}
	return nil
}
