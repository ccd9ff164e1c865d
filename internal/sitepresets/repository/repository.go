package repository

import (
	"context"
	"errors"

	"radiobuddy/backend/internal/sitepresets/domain"
)

// Sentinel errors mapped from database constraint violations.
var (
	// ErrSiteExists is returned by CreateSite when the site_id is taken.
	ErrSiteExists = errors.New("site already exists")
	// ErrRoomExists is returned by CreateRoom when the (site, room) pair is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrSiteNotFound is returned by CreateRoom when the owning site is missing.
	ErrSiteNotFound = errors.New("site not found")
	// ErrRoomNotFound is returned by UpsertProtocol when the owning room is
	// missing. Writing an override never creates parents.
	ErrRoomNotFound = errors.New("room not found")
)

// Repository defines persistence for sites, rooms, and room exposure
// protocol overrides.
type Repository interface {
	CreateSite(ctx context.Context, s *domain.Site) error
	ListSites(ctx context.Context) ([]*domain.Site, error)
	DeleteSite(ctx context.Context, siteID string) error

	CreateRoom(ctx context.Context, r *domain.Room) error
	ListRooms(ctx context.Context, siteID string) ([]*domain.Room, error)
	DeleteRoom(ctx context.Context, siteID, roomID string) error

	// UpsertProtocol atomically replaces any existing record for the same
	// (site, room, procedure) key. The payload must already be schema-valid.
	UpsertProtocol(ctx context.Context, p *domain.RoomExposureProtocol) error
	// GetProtocol returns the override for the exact key triple, or nil if
	// absent. No partial matches, no wildcards.
	GetProtocol(ctx context.Context, siteID, roomID, procedureID string) (*domain.RoomExposureProtocol, error)
}
