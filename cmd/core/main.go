// Package main wires the sync core's components into a runnable process:
// the Local Store, the Repository facade, a mock Remote Gateway, the Sync
// Engine and its Scheduler. It exists to prove the wiring end to end and to
// give the optional websocket transport (cmd/desktop) something live to
// observe; nothing about the core's correctness depends on this binary.
//
// Grounded on the teacher's trivial cmd/core/main.go, expanded from a
// version-string printer into the actual composition root a platform
// embedder (desktop process, mobile FFI host) would otherwise have to
// write itself.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mohamed352/edusync/internal/gateway"
	"github.com/mohamed352/edusync/internal/logging"
	"github.com/mohamed352/edusync/internal/repository"
	"github.com/mohamed352/edusync/internal/scheduler"
	"github.com/mohamed352/edusync/internal/seed"
	"github.com/mohamed352/edusync/internal/store"
	"github.com/mohamed352/edusync/internal/syncconfig"
	"github.com/mohamed352/edusync/internal/syncengine"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	dataDir := flag.String("data-dir", "", "override the local store's data directory")
	seedPath := flag.String("seed", "", "optional YAML fixture of demo users and lessons")
	flag.Parse()

	cfg := syncconfig.DefaultConfig()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logging.Info("edusync core starting", map[string]interface{}{"version": Version, "dataDir": cfg.DataDir})

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer s.Close()

	repo := repository.New(s)
	gw := gateway.NewMockGateway(cfg.SimulatedNetworkDelayMS, cfg.SimulatedFailurePercent, 0)

	fixture := seed.Default()
	if *seedPath != "" {
		fixture, err = seed.Load(*seedPath)
		if err != nil {
			log.Fatalf("load seed fixture: %v", err)
		}
	}
	now := time.Now().UTC()
	gw.SeedUsers(fixture.UserDocuments(now))
	gw.SeedLessons(fixture.LessonDocuments(now))

	engine := syncengine.New(repo, gw, cfg)
	sched := scheduler.New(engine, scheduler.DefaultConfig())

	ctx := context.Background()
	sched.Start(ctx)
	defer sched.Stop()

	sched.SetOnlineStatus(ctx, true)

	if err := sched.SyncNow(ctx); err != nil {
		logging.Error("initial demo sync failed", err, nil)
	} else {
		logging.Info("initial demo sync completed", nil)
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		logging.Error("list users failed", err, nil)
	}
	lessons, err := repo.ListLessons(ctx)
	if err != nil {
		logging.Error("list lessons failed", err, nil)
	}
	logging.Info("demo dataset ready", map[string]interface{}{"users": len(users), "lessons": len(lessons)})
}
