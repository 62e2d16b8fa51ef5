// Package repository provides the Education Repository (C6): the sole
// write entry point for application logic, a thin facade over the Local
// Store (C1) that encapsulates the atomic update rule and the LWW write
// path.
//
// Grounded on the teacher's internal/db/repository.go CRUD method shape:
// assign a fresh models.UUID id, parameterized Exec/QueryRow,
// RowsAffected()==0 not-found handling. Unlike internal/db/repository.go,
// this facade is consumed as a concrete type rather than behind an
// interface: its callers are the Sync Engine and the cmd/ composition
// roots, and nothing substitutes a
// fake Repository in tests (they use a real in-memory store instead), so
// the teacher's interface-segregation layer has no role to play here.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohamed352/edusync/internal/apperrors"
	"github.com/mohamed352/edusync/internal/logging"
	"github.com/mohamed352/edusync/internal/models"
	"github.com/mohamed352/edusync/internal/resolver"
	"github.com/mohamed352/edusync/internal/store"
	"github.com/mohamed352/edusync/internal/uuid"
)

// Repository is the sole write entry point over the local store.
type Repository struct {
	store  *store.Store
	newID  func() string
}

// New creates a Repository backed by s, using the default UUIDv4 id
// generator.
func New(s *store.Store) *Repository {
	return &Repository{store: s, newID: uuid.New}
}

// payload is the canonical serialization journaled alongside a Progress
// mutation, per §4.2 step 4.
type payload struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	LessonID        string    `json:"lessonId"`
	ProgressPercent int       `json:"progressPercent"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UpdateProgress implements §4.2: inside one transaction, it reads the
// existing Progress row for (userID, lessonID), computes the new id and
// clamped percent, upserts the Progress row as pending, and journals
// exactly one entry with the canonical payload. Both writes commit
// together; any failure rolls both back.
func (r *Repository) UpdateProgress(ctx context.Context, userID, lessonID models.UUID, incrementBy int) (*models.Progress, error) {
	var result models.Progress

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.store.GetProgressByUser(ctx, tx, userID, lessonID)
		if err != nil && err != store.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		op := models.OpCreateProgress
		id := models.UUID(r.newID())
		percent := incrementBy

		if err == nil {
			op = models.OpUpdateProgress
			id = existing.ID
			percent = existing.Percent + incrementBy
		}

		p := models.Progress{
			ID:        id,
			UserID:    userID,
			LessonID:  lessonID,
			Percent:   percent,
			UpdatedAt: now,
			Status:    models.StatusPending,
		}
		p.Clamp()

		if err := r.store.UpsertProgress(ctx, tx, &p); err != nil {
			return err
		}

		body, err := json.Marshal(payload{
			ID:              string(p.ID),
			UserID:          string(p.UserID),
			LessonID:        string(p.LessonID),
			ProgressPercent: p.Percent,
			UpdatedAt:       p.UpdatedAt,
		})
		if err != nil {
			return err
		}

		entry := models.JournalEntry{
			Operation: op,
			EntityID:  p.ID,
			Payload:   string(body),
			CreatedAt: now,
		}
		if _, err := r.store.InsertJournalEntry(ctx, tx, &entry); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "update progress", err)
	}

	if err := r.store.PublishSnapshots(ctx); err != nil {
		logging.Warn("failed to publish snapshots after updateProgress", map[string]interface{}{"error": err.Error()})
	}

	return &result, nil
}

// MarkProgressSynced sets status=synced. A no-match is a warning, not an
// error.
func (r *Repository) MarkProgressSynced(ctx context.Context, id models.UUID) error {
	if err := r.store.MarkProgressSynced(ctx, r.store.DB(), id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "mark progress synced", err)
	}
	if _, err := r.store.GetProgressByID(ctx, r.store.DB(), id); err == store.ErrNotFound {
		logging.Warn("markProgressSynced matched no progress row", map[string]interface{}{"progressId": string(id)})
	}
	if err := r.store.PublishSnapshots(ctx); err != nil {
		logging.Warn("failed to publish snapshots after markProgressSynced", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// DeleteJournalEntry removes a journal row by id.
func (r *Repository) DeleteJournalEntry(ctx context.Context, id int64) error {
	if err := r.store.DeleteJournalEntry(ctx, r.store.DB(), id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "delete journal entry", err)
	}
	if err := r.store.PublishSnapshots(ctx); err != nil {
		logging.Warn("failed to publish snapshots after deleteJournalEntry", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// IncrementRetryCount writes currentCount+1. Callers pass the count they
// observed to make the write idempotent under spurious retries.
func (r *Repository) IncrementRetryCount(ctx context.Context, id int64, currentCount int) error {
	if err := r.store.IncrementRetryCount(ctx, r.store.DB(), id, currentCount); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "increment retry count", err)
	}
	return nil
}

// UpsertProgressIfNewer is the LWW write path (§4.5): it validates the
// candidate document, looks up the local row by (userId, lessonId), and
// applies the resolver's decision. Returns whether the store was updated.
func (r *Repository) UpsertProgressIfNewer(ctx context.Context, doc models.ProgressDocument) (bool, error) {
	if err := resolver.ValidateDocument(doc); err != nil {
		logging.LogAppError("skipping malformed remote progress document",
			apperrors.Wrap(apperrors.ErrMalformedDocument, "validate document", err))
		return false, nil
	}

	var accepted bool
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		local, err := r.store.GetProgressByUser(ctx, tx, models.UUID(*doc.UserID), models.UUID(*doc.LessonID))
		if err != nil && err != store.ErrNotFound {
			return err
		}
		if err == store.ErrNotFound {
			local = nil
		}

		decision := resolver.Resolve(local, doc)
		if !decision.Accept {
			return nil
		}

		merged := decision.Merged
		if err := r.store.UpsertProgress(ctx, tx, &merged); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStorage, "upsert progress if newer", err)
	}

	if accepted {
		if err := r.store.PublishSnapshots(ctx); err != nil {
			logging.Warn("failed to publish snapshots after upsertProgressIfNewer", map[string]interface{}{"error": err.Error()})
		}
	}
	return accepted, nil
}

// UpsertUser unconditionally upserts a seeded User document (§4.4 Phase D).
func (r *Repository) UpsertUser(ctx context.Context, u models.User) error {
	if err := r.store.UpsertUser(ctx, r.store.DB(), &u); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "upsert user", err)
	}
	return nil
}

// UpsertLesson unconditionally upserts a seeded Lesson document (§4.4 Phase D).
func (r *Repository) UpsertLesson(ctx context.Context, l models.Lesson) error {
	if err := r.store.UpsertLesson(ctx, r.store.DB(), &l); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "upsert lesson", err)
	}
	return nil
}

// PendingJournal returns JournalEntries with retryCount < maxRetry, in
// insertion order — the queue scan used by the Sync Engine's Upload phase.
func (r *Repository) PendingJournal(ctx context.Context, maxRetry int) ([]*models.JournalEntry, error) {
	entries, err := r.store.PendingJournal(ctx, r.store.DB(), maxRetry)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "scan pending journal", err)
	}
	return entries, nil
}

// GetProgressByUser is a read-only pass-through point query.
func (r *Repository) GetProgressByUser(ctx context.Context, userID, lessonID models.UUID) (*models.Progress, error) {
	p, err := r.store.GetProgressByUser(ctx, r.store.DB(), userID, lessonID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "get progress by user", err)
	}
	return p, nil
}

// ListUsers, ListLessons, ListProgresses are read-only pass-throughs.
func (r *Repository) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := r.store.ListUsers(ctx, r.store.DB())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list users", err)
	}
	return users, nil
}

func (r *Repository) ListLessons(ctx context.Context) ([]*models.Lesson, error) {
	lessons, err := r.store.ListLessons(ctx, r.store.DB())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list lessons", err)
	}
	return lessons, nil
}

func (r *Repository) ListProgresses(ctx context.Context) ([]*models.Progress, error) {
	progresses, err := r.store.ListProgresses(ctx, r.store.DB())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list progresses", err)
	}
	return progresses, nil
}

// PolicyCheck reports, as a warning-only PolicyError (never fatal), any
// pending Progress row that has no corresponding journal entry — a
// contract violation per §3's invariants.
func (r *Repository) PolicyCheck(ctx context.Context) error {
	progresses, err := r.ListProgresses(ctx)
	if err != nil {
		return err
	}
	pending, err := r.PendingJournal(ctx, 1<<30)
	if err != nil {
		return err
	}
	journaled := make(map[models.UUID]bool, len(pending))
	for _, e := range pending {
		journaled[e.EntityID] = true
	}
	for _, p := range progresses {
		if p.Status == models.StatusPending && !journaled[p.ID] {
			logging.LogAppError("policy violation: pending progress has no journal entry",
				apperrors.New(apperrors.ErrPolicy, fmt.Sprintf("progress %s", p.ID)))
		}
	}
	return nil
}
