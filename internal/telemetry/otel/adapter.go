package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"radiobuddy/backend/internal/telemetry"
	"radiobuddy/backend/internal/telemetry/domain"
)

// NewEventEmitter returns an EventEmitter that sends accepted telemetry
// events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("radiobuddy.telemetry")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the telemetry event to an OTel log record and emits it. Best-effort; errors are logged.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.Timestamp.IsZero() {
		rec.SetTimestamp(event.Timestamp)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(string(event.EventType)))
	rec.AddAttributes(otellog.String("event_id", event.EventID))
	rec.AddAttributes(otellog.String("procedure_id", event.ProcedureID))
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.StageID != "" {
		rec.AddAttributes(otellog.String("stage_id", event.StageID))
	}
	if event.SchemaVersion != "" {
		rec.AddAttributes(otellog.String("schema_version", event.SchemaVersion))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
