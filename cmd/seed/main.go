// seed inserts a demo site and room and installs the bundled chest PA erect
// protocol as that room's override. Idempotent: existing records are kept,
// the override is refreshed.
package main

import (
	"context"
	"errors"
	"log"

	"radiobuddy/backend/internal/config"
	"radiobuddy/backend/internal/db"
	"radiobuddy/backend/internal/procedures"
	"radiobuddy/backend/internal/resources"
	"radiobuddy/backend/internal/sitepresets"
	sitepresetrepo "radiobuddy/backend/internal/sitepresets/repository"
)

const (
	demoSiteID = "demo_site"
	demoRoomID = "room_1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	handle := db.NewHandle(cfg.DatabaseURL)
	defer handle.Close()

	presets := sitepresets.NewService(sitepresetrepo.NewPostgresRepository(handle))
	ctx := context.Background()

	if _, err := presets.CreateSite(ctx, demoSiteID, "Demo Site"); err != nil &&
		!errors.Is(err, sitepresetrepo.ErrSiteExists) {
		log.Fatalf("create site: %v", err)
	}
	if _, err := presets.CreateRoom(ctx, demoSiteID, demoRoomID, "Room 1"); err != nil &&
		!errors.Is(err, sitepresetrepo.ErrRoomExists) {
		log.Fatalf("create room: %v", err)
	}

	payload, err := resources.DefaultExposureProtocol()
	if err != nil {
		log.Fatalf("bundled protocol: %v", err)
	}
	rec, err := presets.UpsertProtocol(ctx, demoSiteID, demoRoomID, procedures.ChestPAErect, payload)
	if err != nil {
		log.Fatalf("upsert protocol: %v", err)
	}

	log.Printf("seeded %s/%s with protocol %v", rec.SiteID, rec.RoomID, rec.Payload["protocol_id"])
}
