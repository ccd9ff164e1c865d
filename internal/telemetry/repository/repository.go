package repository

import (
	"context"
	"errors"

	"radiobuddy/backend/internal/telemetry/domain"
)

// ErrDuplicateEvent is returned by Save when an event with the same event_id
// was already recorded. Duplicates are a conflict, never a silent merge.
var ErrDuplicateEvent = errors.New("duplicate event_id")

// Repository defines persistence for telemetry events. The store is
// append-only; events are never updated or deleted.
type Repository interface {
	// Save appends the event. It sets e.CreatedAt on success.
	Save(ctx context.Context, e *domain.Event) error
	// List returns events newest first, optionally filtered by session id.
	// limit is clamped to [1, 500].
	List(ctx context.Context, sessionID string, limit int) ([]*domain.Event, error)
}
