package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/mohamed352/edusync/internal/models"
)

func TestMockGatewayUploadThenFetch(t *testing.T) {
	g := NewMockGateway(0, 0, 1)
	ctx := context.Background()

	id := "p1"
	userID := "u1"
	lessonID := "l1"
	percent := 50
	updatedAt := time.Now().UTC()

	doc := models.ProgressDocument{ID: &id, UserID: &userID, LessonID: &lessonID, Percent: &percent, UpdatedAt: &updatedAt}
	if err := g.UploadProgress(ctx, doc); err != nil {
		t.Fatalf("UploadProgress failed: %v", err)
	}

	docs, err := g.FetchAllProgress(ctx)
	if err != nil {
		t.Fatalf("FetchAllProgress failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if *docs[0].Percent != 50 {
		t.Errorf("percent = %d, want 50", *docs[0].Percent)
	}

	if g.UploadCalls != 1 {
		t.Errorf("UploadCalls = %d, want 1", g.UploadCalls)
	}
}

func TestMockGatewayUploadMergesFields(t *testing.T) {
	g := NewMockGateway(0, 0, 1)
	ctx := context.Background()

	id := "p1"
	userID := "u1"
	lessonID := "l1"
	percent := 10
	t0 := time.Now().UTC()
	if err := g.UploadProgress(ctx, models.ProgressDocument{ID: &id, UserID: &userID, LessonID: &lessonID, Percent: &percent, UpdatedAt: &t0}); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	percent2 := 20
	if err := g.UploadProgress(ctx, models.ProgressDocument{ID: &id, Percent: &percent2}); err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	docs, _ := g.FetchAllProgress(ctx)
	if *docs[0].Percent != 20 {
		t.Errorf("percent = %d, want 20 (merged)", *docs[0].Percent)
	}
	if *docs[0].UserID != "u1" {
		t.Errorf("userId = %q, want unmerged field preserved", *docs[0].UserID)
	}
}

func TestMockGatewaySimulateRemoteConflict(t *testing.T) {
	g := NewMockGateway(0, 0, 1)
	ctx := context.Background()

	before := time.Now().UTC()
	if err := g.SimulateRemoteConflict(ctx, "p1"); err != nil {
		t.Fatalf("SimulateRemoteConflict failed: %v", err)
	}

	docs, _ := g.FetchAllProgress(ctx)
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if *docs[0].Percent != 100 {
		t.Errorf("percent = %d, want 100", *docs[0].Percent)
	}
	if !docs[0].UpdatedAt.After(before.Add(59 * time.Minute)) {
		t.Errorf("updatedAt should be roughly now+1h, got %v", docs[0].UpdatedAt)
	}
}

func TestMockGatewayDeterministicFailure(t *testing.T) {
	g := NewMockGateway(0, 100, 1)
	ctx := context.Background()

	id := "p1"
	percent := 1
	now := time.Now().UTC()
	err := g.UploadProgress(ctx, models.ProgressDocument{ID: &id, Percent: &percent, UpdatedAt: &now})
	if err == nil {
		t.Fatal("expected a simulated failure with failurePercent=100")
	}
}

func TestMockGatewayNeverFails(t *testing.T) {
	g := NewMockGateway(0, 0, 1)
	ctx := context.Background()

	id := "p1"
	percent := 1
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		if err := g.UploadProgress(ctx, models.ProgressDocument{ID: &id, Percent: &percent, UpdatedAt: &now}); err != nil {
			t.Fatalf("unexpected failure with failurePercent=0: %v", err)
		}
	}
}
