// Package syncengine provides the Sync Engine (C4): a connectivity-gated,
// serialized three-phase cycle (upload, conflict injection, download) that
// drains the mutation journal, applies retry-with-cap semantics, and
// reconciles remote data through the LWW resolver.
//
// Grounded on the teacher's internal/sync.SyncEngine (Sync/uploadChanges/
// downloadChanges three-step shape, status field, SyncResult) generalized
// from content-item sync to progress-document sync, and on
// internal/sync.SyncEngineInterface for the SetEventHandler contract —
// whose SyncEventHandler type is referenced there and in
// scheduler_test.go/logger_test.go but never defined in the teacher's
// non-test source. EventHandler below supplies that missing definition.
package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mohamed352/edusync/internal/apperrors"
	"github.com/mohamed352/edusync/internal/gateway"
	"github.com/mohamed352/edusync/internal/logging"
	"github.com/mohamed352/edusync/internal/models"
	"github.com/mohamed352/edusync/internal/repository"
	"github.com/mohamed352/edusync/internal/store"
	"github.com/mohamed352/edusync/internal/syncconfig"
)

// Status is the engine's lifecycle state, published on every transition.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// CycleResult summarizes one performFullSync invocation.
type CycleResult struct {
	Uploaded   int       `json:"uploaded"`
	Downloaded int       `json:"downloaded"`
	Conflicts  int       `json:"conflicts"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// EventHandler receives sync lifecycle notifications. Grounded on the
// teacher's cmd/desktop/websocket.go Hub methods
// (BroadcastSyncStarted/BroadcastSyncProgress/BroadcastSyncCompleted/
// BroadcastSyncFailed), generalized into a plain interface the engine
// calls directly instead of a websocket-specific broadcaster.
type EventHandler interface {
	OnSyncStarted()
	OnSyncProgress(phase string, uploaded, downloaded, conflicts int)
	OnSyncCompleted(result CycleResult)
	OnSyncFailed(err error)
}

// Engine is the Sync Engine (C4).
type Engine struct {
	mu            sync.Mutex
	repo          *repository.Repository
	remote        gateway.RemoteGateway
	cfg           syncconfig.Config
	handler       EventHandler
	online        bool
	syncing       bool
	status        Status
	conflictQueue []models.UUID

	// StatusStream publishes Status values (as JSON strings) on every
	// transition, satisfying the §6 "subscribe to sync-engine status"
	// consumer API without a websocket transport.
	StatusStream *store.Broadcaster
}

// New creates an Engine wired to repo and remote, using cfg for MAX_RETRY.
// Connectivity starts offline, per §4.4's initial state, overwritten on the
// first SetOnlineStatus call.
func New(repo *repository.Repository, remote gateway.RemoteGateway, cfg syncconfig.Config) *Engine {
	e := &Engine{
		repo:         repo,
		remote:       remote,
		cfg:          cfg,
		status:       StatusIdle,
		StatusStream: store.NewBroadcaster(),
	}
	e.publishStatus(StatusIdle)
	return e
}

// SetEventHandler installs h, replacing any previously set handler.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// GetStatus returns the engine's current lifecycle state.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetOnlineStatus records a connectivity transition. A transition from
// offline to online schedules one performFullSync in the background;
// online to offline never interrupts an in-flight cycle.
func (e *Engine) SetOnlineStatus(ctx context.Context, online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	e.mu.Unlock()

	if !was && online {
		go func() {
			if err := e.PerformFullSync(ctx); err != nil {
				logging.Warn("sync cycle triggered by connectivity transition failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}
}

// QueueConflictSimulation appends progressID to the synthetic-conflict
// queue, drained by the next cycle's Phase C.
func (e *Engine) QueueConflictSimulation(progressID models.UUID) {
	e.mu.Lock()
	e.conflictQueue = append(e.conflictQueue, progressID)
	e.mu.Unlock()
}

// TriggerSync starts a cycle in the background if one is not already
// running. Returns false (a no-op) if a cycle is already in progress.
func (e *Engine) TriggerSync(ctx context.Context) bool {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	go func() {
		if err := e.PerformFullSync(ctx); err != nil {
			logging.Warn("triggered sync cycle failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return true
}

func (e *Engine) publishStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	if data, err := json.Marshal(s); err == nil {
		e.StatusStream.Publish(data)
	}
}

func (e *Engine) drainConflictQueue() []models.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	queue := e.conflictQueue
	e.conflictQueue = nil
	return queue
}

// PerformFullSync runs one cycle: Gate, Upload, Conflict Simulation,
// Download, Finalize (§4.4). It is serialized by an in-progress flag: a
// second concurrent call while one is running returns nil silently instead
// of queuing. It also returns nil silently while offline.
func (e *Engine) PerformFullSync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing || !e.online {
		e.mu.Unlock()
		return nil
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	e.publishStatus(StatusSyncing)
	e.withHandler(func(h EventHandler) { h.OnSyncStarted() })

	result := CycleResult{StartedAt: time.Now().UTC()}

	uploaded, err := e.phaseUpload(ctx)
	result.Uploaded = uploaded
	e.withHandler(func(h EventHandler) { h.OnSyncProgress("upload", result.Uploaded, 0, 0) })
	if err != nil {
		return e.fail(result, err)
	}

	conflicts := e.phaseConflict(ctx)
	result.Conflicts = conflicts
	e.withHandler(func(h EventHandler) { h.OnSyncProgress("conflict", result.Uploaded, 0, result.Conflicts) })

	downloaded, err := e.phaseDownload(ctx)
	result.Downloaded = downloaded
	e.withHandler(func(h EventHandler) { h.OnSyncProgress("download", result.Uploaded, result.Downloaded, result.Conflicts) })
	if err != nil {
		return e.fail(result, err)
	}

	if err := e.repo.PolicyCheck(ctx); err != nil {
		logging.Warn("policy check failed", map[string]interface{}{"error": err.Error()})
	}

	result.FinishedAt = time.Now().UTC()
	e.publishStatus(StatusIdle)
	e.withHandler(func(h EventHandler) { h.OnSyncCompleted(result) })
	return nil
}

func (e *Engine) fail(result CycleResult, err error) error {
	result.FinishedAt = time.Now().UTC()
	e.publishStatus(StatusError)
	e.withHandler(func(h EventHandler) { h.OnSyncFailed(err) })
	return err
}

func (e *Engine) withHandler(fn func(EventHandler)) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		fn(h)
	}
}

// phaseUpload drains the pending journal in insertion order. Gateway
// failures (RemoteTransientError) are per-entry: they increment that
// entry's retry count and the phase continues. Only a local-store failure
// (fetching the queue itself, or marking a row synced/deleting its journal
// entry) aborts the phase, since that is a StorageError per §7.
func (e *Engine) phaseUpload(ctx context.Context) (int, error) {
	entries, err := e.repo.PendingJournal(ctx, e.cfg.MaxRetry)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.RetryCount >= e.cfg.MaxRetry {
			logging.Warn(fmt.Sprintf("journal entry %d at retry cap, skipping", entry.ID))
			continue
		}

		var doc models.ProgressDocument
		if err := json.Unmarshal([]byte(entry.Payload), &doc); err != nil {
			logging.LogAppError("journal entry has malformed payload, treating as a failed upload",
				apperrors.Wrap(apperrors.ErrMalformedDocument, "unmarshal journal payload", err),
				map[string]interface{}{"entryId": entry.ID})
			if rerr := e.repo.IncrementRetryCount(ctx, entry.ID, entry.RetryCount); rerr != nil {
				return uploaded, rerr
			}
			continue
		}

		if uploadErr := e.remote.UploadProgress(ctx, doc); uploadErr != nil {
			logging.LogAppError("upload failed, incrementing retry count",
				apperrors.Wrap(apperrors.ErrRemoteTransient, "upload progress", uploadErr),
				map[string]interface{}{"entryId": entry.ID, "entityId": string(entry.EntityID)})
			if rerr := e.repo.IncrementRetryCount(ctx, entry.ID, entry.RetryCount); rerr != nil {
				return uploaded, rerr
			}
			continue
		}

		if err := e.repo.MarkProgressSynced(ctx, entry.EntityID); err != nil {
			return uploaded, err
		}
		if err := e.repo.DeleteJournalEntry(ctx, entry.ID); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

// phaseConflict drains the synthetic-conflict queue FIFO. Failures are
// logged and swallowed; they never abort the cycle or retry.
func (e *Engine) phaseConflict(ctx context.Context) int {
	queue := e.drainConflictQueue()
	conflicts := 0
	for _, id := range queue {
		if err := e.remote.SimulateRemoteConflict(ctx, id); err != nil {
			logging.Warn("simulated remote conflict failed", map[string]interface{}{"progressId": string(id), "error": err.Error()})
			continue
		}
		conflicts++
	}
	return conflicts
}

// phaseDownload fetches users, lessons and progresses. A fetch failure
// (RemoteTransientError) is logged and that step is skipped; it never
// aborts the cycle. A local-store failure while upserting does abort the
// cycle, since that is a StorageError.
func (e *Engine) phaseDownload(ctx context.Context) (int, error) {
	if users, err := e.remote.FetchUsers(ctx); err != nil {
		logging.Warn("fetchUsers failed", map[string]interface{}{"error": err.Error()})
	} else {
		for _, ud := range users {
			if err := e.repo.UpsertUser(ctx, models.User{
				ID: models.UUID(ud.ID), DisplayName: ud.DisplayName, Contact: ud.Contact,
				UpdatedAt: ud.UpdatedAt, Status: models.StatusSynced,
			}); err != nil {
				return 0, err
			}
		}
	}

	if lessons, err := e.remote.FetchLessons(ctx); err != nil {
		logging.Warn("fetchLessons failed", map[string]interface{}{"error": err.Error()})
	} else {
		for _, ld := range lessons {
			if err := e.repo.UpsertLesson(ctx, models.Lesson{
				ID: models.UUID(ld.ID), Title: ld.Title, Description: ld.Description,
				DurationMin: ld.DurationMin, UpdatedAt: ld.UpdatedAt, Status: models.StatusSynced,
			}); err != nil {
				return 0, err
			}
		}
	}

	downloaded := 0
	docs, err := e.remote.FetchAllProgress(ctx)
	if err != nil {
		logging.Warn("fetchAllProgress failed", map[string]interface{}{"error": err.Error()})
		return downloaded, nil
	}
	for _, doc := range docs {
		accepted, err := e.repo.UpsertProgressIfNewer(ctx, doc)
		if err != nil {
			return downloaded, err
		}
		if accepted {
			downloaded++
		}
	}
	return downloaded, nil
}
