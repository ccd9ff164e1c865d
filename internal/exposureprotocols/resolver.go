// Package exposureprotocols resolves an exposure protocol request to either a
// room-scoped override or the bundled static default.
package exposureprotocols

import (
	"context"

	"radiobuddy/backend/internal/procedures"
	"radiobuddy/backend/internal/resources"
	"radiobuddy/backend/internal/sitepresets/domain"
)

// OverrideStore is the room override lookup the resolver consults.
// *sitepresets.Service satisfies it.
type OverrideStore interface {
	GetProtocol(ctx context.Context, siteID, roomID, procedureID string) (*domain.RoomExposureProtocol, error)
}

// Resolver applies the protocol precedence policy: a room override always
// wins over the global default.
type Resolver struct {
	overrides OverrideStore
	static    func() (map[string]any, error)
}

// NewResolver returns a Resolver over the given override store. overrides may
// be nil when no persistent store is configured; resolution then only serves
// the static default.
func NewResolver(overrides OverrideStore) *Resolver {
	return &Resolver{overrides: overrides, static: resources.DefaultExposureProtocol}
}

// Resolve normalizes procedureID and picks the protocol document:
//
//  1. With both siteID and roomID present, a stored override for the key
//     triple is returned immediately, even when the static fallback would
//     also match. Room-local customization always wins.
//  2. Otherwise the bundled default answers, but only for chest_pa_erect.
//  3. Anything else resolves to absent: (nil, nil). Callers map absence to a
//     not-found response, never to an empty document.
//
// Documents coming out of either store are already schema-validated; Resolve
// does not re-validate.
func (r *Resolver) Resolve(ctx context.Context, procedureID, siteID, roomID string) (map[string]any, error) {
	normalized := procedures.Normalize(procedureID)

	if siteID != "" && roomID != "" && r.overrides != nil {
		rec, err := r.overrides.GetProtocol(ctx, siteID, roomID, normalized)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec.Payload, nil
		}
	}

	if normalized == procedures.ChestPAErect {
		return r.static()
	}

	return nil, nil
}
