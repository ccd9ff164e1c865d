package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"radiobuddy/backend/internal/telemetry/domain"
)

const pgUniqueViolation = "23505"

// DBProvider hands out the shared database pool, opening it on first use.
// *db.Handle satisfies it.
type DBProvider interface {
	DB() (*sql.DB, error)
}

type PostgresRepository struct {
	dbp DBProvider
}

// NewPostgresRepository returns a telemetry repository that uses the given provider for persistence.
func NewPostgresRepository(dbp DBProvider) *PostgresRepository {
	return &PostgresRepository{dbp: dbp}
}

// Save appends the event. A reused event_id maps the primary-key violation to
// ErrDuplicateEvent so the boundary can answer with a conflict instead of an
// opaque internal error.
func (r *PostgresRepository) Save(ctx context.Context, e *domain.Event) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}

	createdAt := time.Now().UTC()
	_, err = database.ExecContext(ctx,
		`INSERT INTO telemetry_events
		   (event_id, timestamp, schema_version, event_type, procedure_id,
		    procedure_version, session_id, stage_id,
		    device, metrics, prompt, habitus, exposure, performance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.EventID, e.Timestamp, e.SchemaVersion, string(e.EventType), e.ProcedureID,
		nullString(e.ProcedureVersion), nullString(e.SessionID), nullString(e.StageID),
		nullJSON(e.Device), nullJSON(e.Metrics), nullJSON(e.Prompt),
		nullJSON(e.Habitus), nullJSON(e.Exposure), nullJSON(e.Performance),
		createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateEvent
		}
		return err
	}
	e.CreatedAt = createdAt
	return nil
}

// List returns events newest first, optionally filtered by session id.
// limit is clamped to [1, 500].
func (r *PostgresRepository) List(ctx context.Context, sessionID string, limit int) ([]*domain.Event, error) {
	database, err := r.dbp.DB()
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT event_id, timestamp, schema_version, event_type, procedure_id,
	                 procedure_version, session_id, stage_id,
	                 device, metrics, prompt, habitus, exposure, performance, created_at
	          FROM telemetry_events`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = $1 ORDER BY timestamp DESC LIMIT $2`
		args = append(args, sessionID, limit)
	} else {
		query += ` ORDER BY timestamp DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e                                  domain.Event
			eventType                          string
			procVersion, sessID, stageID       sql.NullString
			device, metrics, prompt            []byte
			habitus, exposure, performanceData []byte
		)
		if err := rows.Scan(
			&e.EventID, &e.Timestamp, &e.SchemaVersion, &eventType, &e.ProcedureID,
			&procVersion, &sessID, &stageID,
			&device, &metrics, &prompt, &habitus, &exposure, &performanceData,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.EventType = domain.EventType(eventType)
		e.ProcedureVersion = procVersion.String
		e.SessionID = sessID.String
		e.StageID = stageID.String
		e.Device = device
		e.Metrics = metrics
		e.Prompt = prompt
		e.Habitus = habitus
		e.Exposure = exposure
		e.Performance = performanceData
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
