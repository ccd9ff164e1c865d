package telemetry

import (
	"context"

	"radiobuddy/backend/internal/telemetry/domain"
)

// EventEmitter emits accepted telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
