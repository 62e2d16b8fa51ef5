// Package main provides the optional desktop-facing server: a localhost
// HTTP + websocket process that exposes the sync core's live state to a
// browser or CLI observer. The core runs identically without this binary;
// this exists purely to make a running sync cycle visible from outside the
// process.
//
// Grounded on the teacher's cmd/desktop/main.go (the localhost HTTP server,
// the DB_PATH-driven data directory bootstrap), generalized from a
// PocketBase-embedding placeholder into the actual composition root for
// this core's websocket observability transport.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mohamed352/edusync/internal/gateway"
	"github.com/mohamed352/edusync/internal/repository"
	"github.com/mohamed352/edusync/internal/scheduler"
	"github.com/mohamed352/edusync/internal/seed"
	"github.com/mohamed352/edusync/internal/store"
	"github.com/mohamed352/edusync/internal/syncconfig"
	"github.com/mohamed352/edusync/internal/syncengine"
)

var dataDir string

func init() {
	dataDir = os.Getenv("DB_PATH")
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
}

func main() {
	cfg := syncconfig.DefaultConfig()
	cfg.DataDir = dataDir

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer s.Close()

	repo := repository.New(s)
	gw := gateway.NewMockGateway(cfg.SimulatedNetworkDelayMS, cfg.SimulatedFailurePercent, 0)
	fixture := seed.Default()
	now := time.Now().UTC()
	gw.SeedUsers(fixture.UserDocuments(now))
	gw.SeedLessons(fixture.LessonDocuments(now))

	engine := syncengine.New(repo, gw, cfg)
	sched := scheduler.New(engine, scheduler.DefaultConfig())

	hub := NewWSHub()
	engine.SetEventHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayTable(ctx, hub, EventUsersUpdated, s.Users)
	relayTable(ctx, hub, EventLessonsUpdated, s.Lessons)
	relayTable(ctx, hub, EventProgressesUpdated, s.Progresses)
	relayTable(ctx, hub, EventJournalCountUpdated, s.JournalCounts)

	sched.Start(ctx)
	defer sched.Stop()
	sched.SetOnlineStatus(ctx, true)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"edusync-desktop"}`))
	})
	mux.HandleFunc("/api/sync-now", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := sched.SyncNow(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	port := "8090"
	log.Printf("edusync desktop server starting on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

// relayTable subscribes to a store broadcaster and forwards every published
// snapshot to the websocket hub under eventType, until ctx is cancelled.
func relayTable(ctx context.Context, hub *WSHub, eventType string, b *store.Broadcaster) {
	ch, unsubscribe := b.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				hub.RelayTable(eventType, payload)
			}
		}
	}()
}
