// Package models provides the data model definitions for the sync core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("models: cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// SyncStatus tags the synchronization state of a locally-held record.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusPending SyncStatus = "pending"
	StatusFailed  SyncStatus = "failed"
)

// Operation tags the kind of mutation a JournalEntry records.
type Operation string

const (
	OpCreateProgress Operation = "createProgress"
	OpUpdateProgress Operation = "updateProgress"
)

// User is read-only after seeding in this core.
type User struct {
	ID          UUID       `db:"id" json:"id"`
	DisplayName string     `db:"display_name" json:"displayName"`
	Contact     string     `db:"contact" json:"contact"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	Status      SyncStatus `db:"status" json:"status"`
}

func (User) TableName() string { return "users" }

// Lesson is read-only after seeding in this core.
type Lesson struct {
	ID          UUID       `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DurationMin int        `db:"duration_min" json:"durationMinutes"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	Status      SyncStatus `db:"status" json:"status"`
}

func (Lesson) TableName() string { return "lessons" }

// Progress is the per-(user, lesson) completion record. At most one row
// exists per (UserID, LessonID); the ID is allocated on first creation and
// never changes thereafter.
type Progress struct {
	ID        UUID       `db:"id" json:"id"`
	UserID    UUID       `db:"user_id" json:"userId"`
	LessonID  UUID       `db:"lesson_id" json:"lessonId"`
	Percent   int        `db:"percent" json:"progressPercent"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	Status    SyncStatus `db:"status" json:"status"`
}

func (Progress) TableName() string { return "progresses" }

// Clamp saturates Percent into [0, 100].
func (p *Progress) Clamp() {
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
}

// JournalEntry is one row of the mutation journal (sync queue). ID is
// monotonically assigned by the store; insertion order is processing order.
type JournalEntry struct {
	ID         int64     `db:"id" json:"id"`
	Operation  Operation `db:"operation" json:"operation"`
	EntityID   UUID      `db:"entity_id" json:"entityId"`
	Payload    string    `db:"payload" json:"payload"`
	RetryCount int       `db:"retry_count" json:"retryCount"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// ProgressDocument is the wire shape exchanged with the Remote Gateway, per
// the external-interfaces contract: id, userId, lessonId, progressPercent,
// updatedAt. Extra fields are tolerated on read; any of these being absent
// marks the document as incomplete (see resolver.ValidateDocument).
type ProgressDocument struct {
	ID        *string    `json:"id,omitempty"`
	UserID    *string    `json:"userId,omitempty"`
	LessonID  *string    `json:"lessonId,omitempty"`
	Percent   *int       `json:"progressPercent,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// UserDocument is the seed shape fetched from the Remote Gateway for users.
type UserDocument struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Contact     string    `json:"contact"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LessonDocument is the seed shape fetched from the Remote Gateway for lessons.
type LessonDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DurationMin int       `json:"durationMinutes"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
