// Package scheduler provides background sync scheduling: a periodic
// ticker that triggers sync cycles while online, plus the
// SetOnlineStatus/TriggerSync/SyncNow surface external callers use to
// drive the Sync Engine (C4) without reaching into its internals.
//
// Grounded on the teacher's internal/sync/scheduler.Scheduler
// (periodicSyncLoop ticker, mutex-guarded isOnline/syncInProgress,
// SetOnlineStatus, TriggerSync, SyncNow, Start/Stop with a stopCh and
// sync.WaitGroup) — the teacher's second queueProcessorLoop goroutine is
// dropped here because this core's offline queue (the mutation journal)
// is drained entirely inside the Sync Engine's own Upload phase; there is
// no separate queue-processing concern to schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mohamed352/edusync/internal/logging"
	"github.com/mohamed352/edusync/internal/syncengine"
)

// Config holds scheduler timing configuration.
type Config struct {
	// SyncInterval is how often a periodic sync cycle is attempted while
	// online.
	SyncInterval time.Duration
}

// DefaultConfig returns the teacher-grounded default of a 15 minute
// periodic sync interval.
func DefaultConfig() Config {
	return Config{SyncInterval: 15 * time.Minute}
}

// Scheduler drives the Sync Engine's performFullSync on a timer and on
// connectivity transitions.
type Scheduler struct {
	engine   *syncengine.Engine
	interval time.Duration

	mu        sync.RWMutex
	isRunning bool
	isOnline  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler driving engine. cfg.SyncInterval defaults to 15
// minutes if zero.
func New(engine *syncengine.Engine, cfg Config) *Scheduler {
	if cfg.SyncInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		engine:   engine,
		interval: cfg.SyncInterval,
	}
}

// Start begins the periodic sync loop. A second Start call while already
// running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.periodicSyncLoop(ctx)

	logging.Info("background sync scheduler started", map[string]interface{}{"intervalMinutes": s.interval.Minutes()})
}

// Stop halts the periodic sync loop and waits for it to exit. An
// in-flight cycle is allowed to finish on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()

	logging.Info("background sync scheduler stopped", nil)
}

// SetOnlineStatus forwards the connectivity signal to the engine, which
// schedules one cycle on an offline-to-online transition.
func (s *Scheduler) SetOnlineStatus(ctx context.Context, online bool) {
	s.mu.Lock()
	s.isOnline = online
	s.mu.Unlock()
	s.engine.SetOnlineStatus(ctx, online)
}

// IsOnline reports the last connectivity signal observed.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// TriggerSync starts a cycle in the background, non-blocking. Returns
// false if a cycle is already running.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	return s.engine.TriggerSync(ctx)
}

// SyncNow runs one cycle and blocks until it completes.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	return s.engine.PerformFullSync(ctx)
}

func (s *Scheduler) periodicSyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.mu.RLock()
	stopCh := s.stopCh
	s.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			if !s.engine.TriggerSync(ctx) {
				logging.Debug("periodic sync tick skipped: a cycle is already in progress", nil)
			}
		}
	}
}
