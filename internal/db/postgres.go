package db

import (
	"database/sql"
	"errors"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotConfigured is returned by Handle.DB when no DATABASE_URL was provided.
// The HTTP boundary maps it to a service-unavailable response.
var ErrNotConfigured = errors.New("db: DATABASE_URL is not set")

// Open opens a Postgres connection using the given DSN. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Handle lazily opens a shared *sql.DB on first use. All requests share the
// one pool; a failed open is retried on the next call.
type Handle struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

// NewHandle returns a Handle for the given DSN. The DSN may be empty; DB then
// fails with ErrNotConfigured instead of dialing.
func NewHandle(dsn string) *Handle {
	return &Handle{dsn: dsn}
}

// DB returns the shared database pool, opening it on first call.
func (h *Handle) DB() (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return h.db, nil
	}
	if h.dsn == "" {
		return nil, ErrNotConfigured
	}
	db, err := Open(h.dsn)
	if err != nil {
		return nil, err
	}
	h.db = db
	return h.db, nil
}

// Configured reports whether a DSN was provided.
func (h *Handle) Configured() bool {
	return h.dsn != ""
}

// Close closes the pool if it was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
