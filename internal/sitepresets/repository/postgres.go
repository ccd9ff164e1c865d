package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"radiobuddy/backend/internal/sitepresets/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBProvider hands out the shared database pool, opening it on first use.
// *db.Handle satisfies it.
type DBProvider interface {
	DB() (*sql.DB, error)
}

type PostgresRepository struct {
	dbp DBProvider
}

// NewPostgresRepository returns a site preset repository that uses the given provider for persistence.
func NewPostgresRepository(dbp DBProvider) *PostgresRepository {
	return &PostgresRepository{dbp: dbp}
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateSite persists the site. Returns ErrSiteExists when the site_id is taken.
func (r *PostgresRepository) CreateSite(ctx context.Context, s *domain.Site) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}
	name := sql.NullString{String: s.Name, Valid: s.Name != ""}
	_, err = database.ExecContext(ctx,
		`INSERT INTO sites (site_id, name, created_at) VALUES ($1, $2, $3)`,
		s.SiteID, name, s.CreatedAt,
	)
	if pgErrCode(err) == pgUniqueViolation {
		return ErrSiteExists
	}
	return err
}

// ListSites returns all sites ordered by site_id.
func (r *PostgresRepository) ListSites(ctx context.Context) ([]*domain.Site, error) {
	database, err := r.dbp.DB()
	if err != nil {
		return nil, err
	}
	rows, err := database.QueryContext(ctx,
		`SELECT site_id, name, created_at FROM sites ORDER BY site_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Site
	for rows.Next() {
		var s domain.Site
		var name sql.NullString
		if err := rows.Scan(&s.SiteID, &name, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Name = name.String
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteSite removes the site; rooms and their overrides go with it via
// ON DELETE CASCADE. Deleting a missing site is a no-op.
func (r *PostgresRepository) DeleteSite(ctx context.Context, siteID string) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx, `DELETE FROM sites WHERE site_id = $1`, siteID)
	return err
}

// CreateRoom persists the room. Returns ErrSiteNotFound when the owning site
// is missing and ErrRoomExists when the (site, room) pair is taken.
func (r *PostgresRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}
	name := sql.NullString{String: room.Name, Valid: room.Name != ""}
	_, err = database.ExecContext(ctx,
		`INSERT INTO rooms (site_id, room_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		room.SiteID, room.RoomID, name, room.CreatedAt,
	)
	switch pgErrCode(err) {
	case pgForeignKeyViolation:
		return ErrSiteNotFound
	case pgUniqueViolation:
		return ErrRoomExists
	}
	return err
}

// ListRooms returns the rooms under siteID ordered by room_id.
func (r *PostgresRepository) ListRooms(ctx context.Context, siteID string) ([]*domain.Room, error) {
	database, err := r.dbp.DB()
	if err != nil {
		return nil, err
	}
	rows, err := database.QueryContext(ctx,
		`SELECT site_id, room_id, name, created_at FROM rooms WHERE site_id = $1 ORDER BY room_id`,
		siteID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		var room domain.Room
		var name sql.NullString
		if err := rows.Scan(&room.SiteID, &room.RoomID, &name, &room.CreatedAt); err != nil {
			return nil, err
		}
		room.Name = name.String
		out = append(out, &room)
	}
	return out, rows.Err()
}

// DeleteRoom removes the room and its overrides via ON DELETE CASCADE.
func (r *PostgresRepository) DeleteRoom(ctx context.Context, siteID, roomID string) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx,
		`DELETE FROM rooms WHERE site_id = $1 AND room_id = $2`, siteID, roomID)
	return err
}

// UpsertProtocol writes the override, replacing any record with the same
// (site, room, procedure) key. Returns ErrRoomNotFound when the owning room
// is missing; parents are never created implicitly.
func (r *PostgresRepository) UpsertProtocol(ctx context.Context, p *domain.RoomExposureProtocol) error {
	database, err := r.dbp.DB()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = database.ExecContext(ctx,
		`INSERT INTO room_exposure_protocols (site_id, room_id, procedure_id, payload, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (site_id, room_id, procedure_id)
		 DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		p.SiteID, p.RoomID, p.ProcedureID, payload, p.UpdatedAt,
	)
	if pgErrCode(err) == pgForeignKeyViolation {
		return ErrRoomNotFound
	}
	return err
}

// GetProtocol returns the override for the exact key triple, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetProtocol(ctx context.Context, siteID, roomID, procedureID string) (*domain.RoomExposureProtocol, error) {
	database, err := r.dbp.DB()
	if err != nil {
		return nil, err
	}
	var (
		p   domain.RoomExposureProtocol
		raw []byte
	)
	err = database.QueryRowContext(ctx,
		`SELECT site_id, room_id, procedure_id, payload, updated_at
		 FROM room_exposure_protocols
		 WHERE site_id = $1 AND room_id = $2 AND procedure_id = $3`,
		siteID, roomID, procedureID,
	).Scan(&p.SiteID, &p.RoomID, &p.ProcedureID, &raw, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &p, nil
}
