// Package gateway defines the Remote Gateway contract (C3) and a mock
// in-memory implementation for deterministic demos and tests.
//
// Grounded on the shape of the teacher's internal/sync/engine.go
// ObjectStore interface (Upload/Download/Delete/List over a
// context.Context), adapted from a byte-blob object store to a typed
// document gateway, since this core's remote model is a document store
// keyed by Progress.id rather than a blob store.
package gateway

import (
	"context"

	"github.com/mohamed352/edusync/internal/models"
)

// RemoteGateway is the interface the Sync Engine drives. Implementations
// are expected to use a document store keyed by Progress.id; failures are
// uniformly "transient" from the core's perspective.
type RemoteGateway interface {
	// UploadProgress merges doc into the remote document keyed by doc's id.
	// Fields absent from doc are left untouched remotely.
	UploadProgress(ctx context.Context, doc models.ProgressDocument) error

	// FetchAllProgress returns every remote progress document. Documents
	// may be incomplete (see resolver.ValidateDocument).
	FetchAllProgress(ctx context.Context) ([]models.ProgressDocument, error)

	// SimulateRemoteConflict writes a synthetic document for progressId
	// with progressPercent=100 and updatedAt=now+1h, for deterministic
	// end-to-end conflict demos.
	SimulateRemoteConflict(ctx context.Context, progressID models.UUID) error

	// FetchUsers and FetchLessons are the seed data source for
	// non-progress entities; the core treats both as unconditional
	// upserts.
	FetchUsers(ctx context.Context) ([]models.UserDocument, error)
	FetchLessons(ctx context.Context) ([]models.LessonDocument, error)
}
