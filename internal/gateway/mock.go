package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mohamed352/edusync/internal/models"
)

// MockGateway is an in-memory RemoteGateway with injectable latency and
// failure rate, grounded on the general shape of the teacher's
// internal/sync/s3_client.go (an ObjectStore-conforming HTTP client) but
// implemented over a map instead of real HTTP, since the transport is
// abstracted away by this core (§4.3) and this gateway exists for
// deterministic end-to-end demos and tests, not production transport.
type MockGateway struct {
	mu sync.Mutex

	progress map[string]models.ProgressDocument
	users    []models.UserDocument
	lessons  []models.LessonDocument

	networkDelay    time.Duration
	failurePercent  int
	rng             *rand.Rand

	// Call-tracking fields, grounded on the teacher's
	// mock_repository_test.go argument-capture idiom, useful for
	// assertions in tests without a mocking library.
	UploadCalls                 int
	FetchAllProgressCalls       int
	SimulateRemoteConflictCalls int
}

// NewMockGateway creates a MockGateway with the given simulated network
// delay (milliseconds) and failure rate (0-100, percent of calls that
// fail). A seed of 0 is treated as "use an unseeded source" for demo runs;
// tests should pass a fixed non-zero seed for determinism.
func NewMockGateway(networkDelayMS, failurePercent int, seed int64) *MockGateway {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src := rand.NewSource(seed)
	return &MockGateway{
		progress:       make(map[string]models.ProgressDocument),
		networkDelay:   time.Duration(networkDelayMS) * time.Millisecond,
		failurePercent: failurePercent,
		rng:            rand.New(src),
	}
}

// SeedUsers and SeedLessons let tests/demos preload what FetchUsers and
// FetchLessons will return.
func (g *MockGateway) SeedUsers(users []models.UserDocument)     { g.users = users }
func (g *MockGateway) SeedLessons(lessons []models.LessonDocument) { g.lessons = lessons }

func (g *MockGateway) delay(ctx context.Context) error {
	if g.networkDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(g.networkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *MockGateway) maybeFail() error {
	if g.failurePercent <= 0 {
		return nil
	}
	if g.rng.Intn(100) < g.failurePercent {
		return fmt.Errorf("gateway: simulated transient failure")
	}
	return nil
}

// UploadProgress merges doc into the document keyed by doc's id.
func (g *MockGateway) UploadProgress(ctx context.Context, doc models.ProgressDocument) error {
	if err := g.delay(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.UploadCalls++

	if err := g.maybeFail(); err != nil {
		return err
	}
	if doc.ID == nil {
		return fmt.Errorf("gateway: upload requires a document id")
	}

	existing, ok := g.progress[*doc.ID]
	if !ok {
		g.progress[*doc.ID] = doc
		return nil
	}
	mergeInto(&existing, doc)
	g.progress[*doc.ID] = existing
	return nil
}

func mergeInto(dst *models.ProgressDocument, src models.ProgressDocument) {
	if src.ID != nil {
		dst.ID = src.ID
	}
	if src.UserID != nil {
		dst.UserID = src.UserID
	}
	if src.LessonID != nil {
		dst.LessonID = src.LessonID
	}
	if src.Percent != nil {
		dst.Percent = src.Percent
	}
	if src.UpdatedAt != nil {
		dst.UpdatedAt = src.UpdatedAt
	}
}

// FetchAllProgress returns every remote progress document.
func (g *MockGateway) FetchAllProgress(ctx context.Context) ([]models.ProgressDocument, error) {
	if err := g.delay(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.FetchAllProgressCalls++

	if err := g.maybeFail(); err != nil {
		return nil, err
	}

	docs := make([]models.ProgressDocument, 0, len(g.progress))
	for _, d := range g.progress {
		docs = append(docs, d)
	}
	return docs, nil
}

// SimulateRemoteConflict writes a synthetic newer document for progressID.
func (g *MockGateway) SimulateRemoteConflict(ctx context.Context, progressID models.UUID) error {
	if err := g.delay(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.SimulateRemoteConflictCalls++

	id := string(progressID)
	percent := 100
	updatedAt := time.Now().UTC().Add(time.Hour)

	existing, ok := g.progress[id]
	if !ok {
		existing = models.ProgressDocument{ID: &id}
	}
	existing.Percent = &percent
	existing.UpdatedAt = &updatedAt
	g.progress[id] = existing
	return nil
}

// FetchUsers returns the seeded user documents.
func (g *MockGateway) FetchUsers(ctx context.Context) ([]models.UserDocument, error) {
	if err := g.delay(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.users, nil
}

// FetchLessons returns the seeded lesson documents.
func (g *MockGateway) FetchLessons(ctx context.Context) ([]models.LessonDocument, error) {
	if err := g.delay(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lessons, nil
}

var _ RemoteGateway = (*MockGateway)(nil)
