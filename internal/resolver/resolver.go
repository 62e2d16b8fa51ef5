// Package resolver implements the Last-Write-Wins conflict policy (C5): a
// pure decision function over a local and a candidate remote Progress
// record, with no side effects and no storage access of its own.
//
// Grounded on the teacher's internal/sync/conflict.Resolver.resolveLastWriteWins,
// which already compares local/remote timestamps with `>=` resolving ties
// to local — the exact tie-break rule this core requires. That function
// operated on a generic Conflict{LocalItem, RemoteItem interface{}}
// wrapper shared by every entity kind; here it is narrowed to a
// Progress-typed decision and extended with the identity-preservation rule
// (the local row id always wins, even when the remote document carries a
// different id for the same user/lesson pair).
package resolver

import (
	"fmt"
	"time"

	"github.com/mohamed352/edusync/internal/models"
)

// Decision is the outcome of resolving a candidate remote document against
// the current local row (which may be nil if no local row exists yet).
type Decision struct {
	Accept  bool
	Merged  models.Progress
}

// ValidateDocument applies the §4.5 Step 1 validity gate: any of
// {id, userId, lessonId, progressPercent, updatedAt} missing, or an
// unparsable timestamp, disqualifies the document.
func ValidateDocument(doc models.ProgressDocument) error {
	if doc.ID == nil || *doc.ID == "" {
		return fmt.Errorf("resolver: missing id")
	}
	if doc.UserID == nil || *doc.UserID == "" {
		return fmt.Errorf("resolver: missing userId")
	}
	if doc.LessonID == nil || *doc.LessonID == "" {
		return fmt.Errorf("resolver: missing lessonId")
	}
	if doc.Percent == nil {
		return fmt.Errorf("resolver: missing progressPercent")
	}
	if doc.UpdatedAt == nil || doc.UpdatedAt.IsZero() {
		return fmt.Errorf("resolver: missing or malformed updatedAt")
	}
	return nil
}

// Resolve implements upsertProgressIfNewer's decision logic (§4.5, steps
// 2-3). local is nil when no row exists for (userId, lessonId) yet.
func Resolve(local *models.Progress, doc models.ProgressDocument) Decision {
	remotePercent := clamp(*doc.Percent)

	if local == nil {
		return Decision{
			Accept: true,
			Merged: models.Progress{
				ID:        models.UUID(*doc.ID),
				UserID:    models.UUID(*doc.UserID),
				LessonID:  models.UUID(*doc.LessonID),
				Percent:   remotePercent,
				UpdatedAt: *doc.UpdatedAt,
				Status:    models.StatusSynced,
			},
		}
	}

	if isStrictlyAfter(*doc.UpdatedAt, local.UpdatedAt) {
		// Remote strictly newer: accept, but preserve the local row's id
		// (identity stability) even if the remote document names a
		// different one for the same (userId, lessonId) pair.
		return Decision{
			Accept: true,
			Merged: models.Progress{
				ID:        local.ID,
				UserID:    local.UserID,
				LessonID:  local.LessonID,
				Percent:   remotePercent,
				UpdatedAt: *doc.UpdatedAt,
				Status:    models.StatusSynced,
			},
		}
	}

	// remote.updatedAt <= local.updatedAt: tie or local newer, both no-op.
	return Decision{Accept: false, Merged: *local}
}

func isStrictlyAfter(remote, local time.Time) bool {
	return remote.After(local)
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
