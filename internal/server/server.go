// Package server implements the positioning API's HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"radiobuddy/backend/internal/aiassist"
	"radiobuddy/backend/internal/db"
	"radiobuddy/backend/internal/exposureprotocols"
	"radiobuddy/backend/internal/sitepresets"
	"radiobuddy/backend/internal/telemetry"
	telemetryrepo "radiobuddy/backend/internal/telemetry/repository"
)

// Options carries everything the server needs. Database-backed dependencies
// may sit on an unconfigured handle; the routes that need them answer 503
// until a DSN is provided.
type Options struct {
	Addr         string
	AdminAPIKey  string
	MaxBodyBytes int64

	DB            *db.Handle
	Presets       *sitepresets.Service
	Resolver      *exposureprotocols.Resolver
	TelemetryRepo telemetryrepo.Repository
	Emitter       telemetry.EventEmitter
	Assist        *aiassist.Service

	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	opts   Options
	router chi.Router
	srv    *http.Server
	logger *slog.Logger
}

// New builds the router and middleware chain.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{opts: opts, logger: opts.Logger}

	tracer := otel.Tracer("radiobuddy.server")
	meter := otel.Meter("radiobuddy.server")
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Count of handled HTTP requests."))
	if err != nil {
		opts.Logger.Warn("request counter unavailable", "error", err)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))
	if requests != nil {
		r.Use(TelemetryMiddleware(tracer, requests))
	}
	r.Use(MaxBodyMiddleware(opts.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CategoryHTTPError, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, CategoryHTTPError, "method not allowed")
	})

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests and blocks until the listener closes.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("http server listening", "addr", s.opts.Addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
