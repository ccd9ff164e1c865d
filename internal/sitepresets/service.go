// Package sitepresets implements the room override store: site and room
// management plus schema-gated upserts of per-room exposure protocols.
package sitepresets

import (
	"context"
	"time"

	"radiobuddy/backend/internal/schema"
	"radiobuddy/backend/internal/sitepresets/domain"
	"radiobuddy/backend/internal/sitepresets/repository"
)

// Service wraps the repository with domain validation and the schema gate on
// protocol writes.
type Service struct {
	repo repository.Repository
	now  func() time.Time
}

// NewService returns a Service backed by repo.
func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSite validates and persists a new site.
func (s *Service) CreateSite(ctx context.Context, siteID, name string) (*domain.Site, error) {
	site := &domain.Site{SiteID: siteID, Name: name, CreatedAt: s.now()}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSite(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

// ListSites returns all sites ordered by id.
func (s *Service) ListSites(ctx context.Context) ([]*domain.Site, error) {
	return s.repo.ListSites(ctx)
}

// DeleteSite removes the site and, by cascade, its rooms and overrides.
// Deleting a missing site is a no-op.
func (s *Service) DeleteSite(ctx context.Context, siteID string) error {
	return s.repo.DeleteSite(ctx, siteID)
}

// CreateRoom validates and persists a new room under siteID.
func (s *Service) CreateRoom(ctx context.Context, siteID, roomID, name string) (*domain.Room, error) {
	room := &domain.Room{SiteID: siteID, RoomID: roomID, Name: name, CreatedAt: s.now()}
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns the rooms under siteID ordered by id.
func (s *Service) ListRooms(ctx context.Context, siteID string) ([]*domain.Room, error) {
	return s.repo.ListRooms(ctx, siteID)
}

// DeleteRoom removes the room and, by cascade, its protocol overrides.
func (s *Service) DeleteRoom(ctx context.Context, siteID, roomID string) error {
	return s.repo.DeleteRoom(ctx, siteID, roomID)
}

// UpsertProtocol stamps the key triple into the payload, validates the result
// against the exposure protocol schema, and replaces any existing record for
// the same key with a fresh updated_at. Validation failure aborts the write;
// nothing is persisted. Retrying with an identical payload converges on the
// same stored state.
func (s *Service) UpsertProtocol(ctx context.Context, siteID, roomID, procedureID string, payload map[string]any) (*domain.RoomExposureProtocol, error) {
	doc := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		doc[k] = v
	}
	doc["site_id"] = siteID
	doc["room_id"] = roomID
	doc["procedure_id"] = procedureID

	if err := schema.Validate(schema.ExposureProtocol, doc); err != nil {
		return nil, err
	}

	rec := &domain.RoomExposureProtocol{
		SiteID:      siteID,
		RoomID:      roomID,
		ProcedureID: procedureID,
		Payload:     doc,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.UpsertProtocol(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetProtocol returns the stored override for the exact key, or nil if absent.
func (s *Service) GetProtocol(ctx context.Context, siteID, roomID, procedureID string) (*domain.RoomExposureProtocol, error) {
	return s.repo.GetProtocol(ctx, siteID, roomID, procedureID)
}
