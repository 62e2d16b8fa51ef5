package resolver

import (
	"testing"
	"time"

	"github.com/mohamed352/edusync/internal/models"
)

func ptr[T any](v T) *T { return &v }

func doc(id, userID, lessonID string, percent int, updatedAt time.Time) models.ProgressDocument {
	return models.ProgressDocument{
		ID:        ptr(id),
		UserID:    ptr(userID),
		LessonID:  ptr(lessonID),
		Percent:   ptr(percent),
		UpdatedAt: ptr(updatedAt),
	}
}

// TestResolveNoLocalRow covers §4.5 Step 3's unconditional-insert branch.
func TestResolveNoLocalRow(t *testing.T) {
	now := time.Now().UTC()
	d := Resolve(nil, doc("p1", "u1", "l1", 80, now))

	if !d.Accept {
		t.Fatal("expected accept when no local row exists")
	}
	if d.Merged.Status != models.StatusSynced {
		t.Errorf("status = %q, want synced", d.Merged.Status)
	}
	if d.Merged.Percent != 80 {
		t.Errorf("percent = %d, want 80", d.Merged.Percent)
	}
}

// TestResolveRemoteNewerWins is scenario S2.
func TestResolveRemoteNewerWins(t *testing.T) {
	local := &models.Progress{
		ID: "p1", UserID: "u1", LessonID: "l1",
		Percent: 30, Status: models.StatusSynced,
		UpdatedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	remote := doc("remote-id", "u1", "l1", 80, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC))

	d := Resolve(local, remote)

	if !d.Accept {
		t.Fatal("expected accept when remote is strictly newer")
	}
	if d.Merged.Percent != 80 {
		t.Errorf("percent = %d, want 80", d.Merged.Percent)
	}
	if d.Merged.ID != local.ID {
		t.Errorf("id = %q, want local id %q preserved", d.Merged.ID, local.ID)
	}
	if d.Merged.Status != models.StatusSynced {
		t.Errorf("status = %q, want synced", d.Merged.Status)
	}
}

// TestResolveLocalNewerWins is scenario S3.
func TestResolveLocalNewerWins(t *testing.T) {
	local := &models.Progress{
		ID: "p1", UserID: "u1", LessonID: "l1",
		Percent: 60, Status: models.StatusPending,
		UpdatedAt: time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC),
	}
	remote := doc("p1", "u1", "l1", 40, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	d := Resolve(local, remote)

	if d.Accept {
		t.Fatal("expected reject when local is strictly newer")
	}
	if d.Merged.Percent != 60 {
		t.Errorf("local row must be unchanged, percent = %d, want 60", d.Merged.Percent)
	}
	if d.Merged.Status != models.StatusPending {
		t.Errorf("local row must be unchanged, status = %q, want pending", d.Merged.Status)
	}
}

// TestResolveTieBreakToLocal is scenario S4.
func TestResolveTieBreakToLocal(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	local := &models.Progress{
		ID: "p1", UserID: "u1", LessonID: "l1",
		Percent: 45, Status: models.StatusSynced, UpdatedAt: ts,
	}
	remote := doc("p1", "u1", "l1", 90, ts)

	d := Resolve(local, remote)

	if d.Accept {
		t.Fatal("expected reject on equal timestamps (tie-break to local)")
	}
	if d.Merged.Percent != 45 {
		t.Errorf("percent = %d, want 45 (local unchanged)", d.Merged.Percent)
	}
}

// TestResolveIdentityPreservation: a remote id mismatch must not change
// the local row's id (testable property 3).
func TestResolveIdentityPreservation(t *testing.T) {
	local := &models.Progress{
		ID: "local-id", UserID: "u1", LessonID: "l1",
		Percent: 10, Status: models.StatusSynced,
		UpdatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	remote := doc("different-remote-id", "u1", "l1", 99, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC))

	d := Resolve(local, remote)

	if !d.Accept {
		t.Fatal("expected accept, remote is newer")
	}
	if d.Merged.ID != "local-id" {
		t.Errorf("id = %q, want local id preserved", d.Merged.ID)
	}
}

func TestResolveClampsRemotePercent(t *testing.T) {
	remote := doc("p1", "u1", "l1", 150, time.Now().UTC())
	d := Resolve(nil, remote)

	if d.Merged.Percent != 100 {
		t.Errorf("percent = %d, want clamped to 100", d.Merged.Percent)
	}
}

func TestValidateDocumentRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		doc  models.ProgressDocument
	}{
		{"missing id", models.ProgressDocument{UserID: ptr("u1"), LessonID: ptr("l1"), Percent: ptr(1), UpdatedAt: ptr(time.Now())}},
		{"missing userId", models.ProgressDocument{ID: ptr("p1"), LessonID: ptr("l1"), Percent: ptr(1), UpdatedAt: ptr(time.Now())}},
		{"missing lessonId", models.ProgressDocument{ID: ptr("p1"), UserID: ptr("u1"), Percent: ptr(1), UpdatedAt: ptr(time.Now())}},
		{"missing percent", models.ProgressDocument{ID: ptr("p1"), UserID: ptr("u1"), LessonID: ptr("l1"), UpdatedAt: ptr(time.Now())}},
		{"missing updatedAt", models.ProgressDocument{ID: ptr("p1"), UserID: ptr("u1"), LessonID: ptr("l1"), Percent: ptr(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateDocument(tt.doc); err == nil {
				t.Error("expected an error for an incomplete document")
			}
		})
	}
}

func TestValidateDocumentAcceptsComplete(t *testing.T) {
	d := doc("p1", "u1", "l1", 50, time.Now())
	if err := ValidateDocument(d); err != nil {
		t.Errorf("unexpected error for a complete document: %v", err)
	}
}
