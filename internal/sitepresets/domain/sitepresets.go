// Package domain holds the site preset entities: sites, rooms scoped under a
// site, and per-room exposure protocol overrides keyed by procedure.
package domain

import (
	"regexp"
	"time"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidationError reports a field-level problem with an entity.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ValidID reports whether s is a well-formed site or room identifier.
func ValidID(s string) bool {
	return s != "" && len(s) <= 64 && idPattern.MatchString(s)
}

// Site is a deployment location. Deleting a site cascades to its rooms and
// their protocol overrides.
type Site struct {
	SiteID    string
	Name      string // optional display name
	CreatedAt time.Time
}

// Validate validates the site for persistence. Returns an error describing the first validation failure.
func (s *Site) Validate() error {
	if !ValidID(s.SiteID) {
		return &ValidationError{Field: "site_id", Message: "must match [a-z0-9_-]+ and be at most 64 chars"}
	}
	if len(s.Name) > 200 {
		return &ValidationError{Field: "name", Message: "must be at most 200 chars"}
	}
	return nil
}

// Room is an imaging room scoped under a site (composite key site_id+room_id).
type Room struct {
	SiteID    string
	RoomID    string
	Name      string // optional display name
	CreatedAt time.Time
}

// Validate validates the room for persistence. Returns an error describing the first validation failure.
func (r *Room) Validate() error {
	if !ValidID(r.SiteID) {
		return &ValidationError{Field: "site_id", Message: "must match [a-z0-9_-]+ and be at most 64 chars"}
	}
	if !ValidID(r.RoomID) {
		return &ValidationError{Field: "room_id", Message: "must match [a-z0-9_-]+ and be at most 64 chars"}
	}
	if len(r.Name) > 200 {
		return &ValidationError{Field: "name", Message: "must be at most 200 chars"}
	}
	return nil
}

// RoomExposureProtocol is one room-scoped exposure protocol override. Exactly
// one record exists per (site, room, procedure); writes replace on conflict
// and never accumulate history.
type RoomExposureProtocol struct {
	SiteID      string
	RoomID      string
	ProcedureID string
	Payload     map[string]any // schema-validated exposure protocol document
	UpdatedAt   time.Time
}
