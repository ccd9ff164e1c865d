package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"radiobuddy/backend/internal/aiassist"
	"radiobuddy/backend/internal/config"
	"radiobuddy/backend/internal/db"
	"radiobuddy/backend/internal/exposureprotocols"
	"radiobuddy/backend/internal/server"
	"radiobuddy/backend/internal/sitepresets"
	sitepresetrepo "radiobuddy/backend/internal/sitepresets/repository"
	"radiobuddy/backend/internal/telemetry"
	telemetryotel "radiobuddy/backend/internal/telemetry/otel"
	telemetryrepo "radiobuddy/backend/internal/telemetry/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "radiobuddy-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	dbHandle := db.NewHandle(cfg.DatabaseURL)
	defer dbHandle.Close()
	if !dbHandle.Configured() {
		logger.Warn("DATABASE_URL is not set; site presets and telemetry storage answer 503")
	}

	presets := sitepresets.NewService(sitepresetrepo.NewPostgresRepository(dbHandle))
	resolver := exposureprotocols.NewResolver(presets)
	events := telemetryrepo.NewPostgresRepository(dbHandle)
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	var inference aiassist.InstructionProvider
	if cfg.AIInferenceEnabled {
		inference = aiassist.NewInferenceClient(
			cfg.AIInferenceURL, cfg.AIModelAccessKey, cfg.AIModelID, cfg.InferenceTimeout())
	}
	assist := aiassist.NewService(inference, cfg.AIInferenceEnabled, logger)

	srv := server.New(server.Options{
		Addr:          cfg.HTTPAddr,
		AdminAPIKey:   cfg.AdminAPIKey,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		DB:            dbHandle,
		Presets:       presets,
		Resolver:      resolver,
		TelemetryRepo: events,
		Emitter:       emitter,
		Assist:        assist,
		Logger:        logger,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}

	// Give in-flight telemetry emits a moment before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}
	logger.Info("http server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
