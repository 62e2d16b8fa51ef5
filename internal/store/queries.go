package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mohamed352/edusync/internal/models"
)

// ErrNotFound is returned by point queries that find no matching row.
var ErrNotFound = errors.New("store: not found")

// queryer is satisfied by both *sql.DB and *sql.Tx, letting every method
// below run either inside Store.WithTx or directly against the database.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const timeLayout = time.RFC3339Nano

// UpsertUser inserts or replaces a User row unconditionally.
func (s *Store) UpsertUser(ctx context.Context, q queryer, u *models.User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, display_name, contact, updated_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name=excluded.display_name,
			contact=excluded.contact,
			updated_at=excluded.updated_at,
			status=excluded.status`,
		string(u.ID), u.DisplayName, u.Contact, u.UpdatedAt.Format(timeLayout), string(u.Status))
	return err
}

// UpsertLesson inserts or replaces a Lesson row unconditionally.
func (s *Store) UpsertLesson(ctx context.Context, q queryer, l *models.Lesson) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO lessons (id, title, description, duration_min, updated_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			duration_min=excluded.duration_min,
			updated_at=excluded.updated_at,
			status=excluded.status`,
		string(l.ID), l.Title, l.Description, l.DurationMin, l.UpdatedAt.Format(timeLayout), string(l.Status))
	return err
}

// UpsertProgress inserts or replaces a Progress row by primary key.
func (s *Store) UpsertProgress(ctx context.Context, q queryer, p *models.Progress) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO progresses (id, user_id, lesson_id, percent, updated_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id,
			lesson_id=excluded.lesson_id,
			percent=excluded.percent,
			updated_at=excluded.updated_at,
			status=excluded.status`,
		string(p.ID), string(p.UserID), string(p.LessonID), p.Percent, p.UpdatedAt.Format(timeLayout), string(p.Status))
	return err
}

// GetProgressByUser is the point query over (userId, lessonId): 0 or 1 row.
func (s *Store) GetProgressByUser(ctx context.Context, q queryer, userID, lessonID models.UUID) (*models.Progress, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, lesson_id, percent, updated_at, status
		FROM progresses WHERE user_id = ? AND lesson_id = ?`,
		string(userID), string(lessonID))
	return scanProgress(row)
}

// GetProgressByID looks up a Progress row by its primary key.
func (s *Store) GetProgressByID(ctx context.Context, q queryer, id models.UUID) (*models.Progress, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, lesson_id, percent, updated_at, status
		FROM progresses WHERE id = ?`, string(id))
	return scanProgress(row)
}

func scanProgress(row *sql.Row) (*models.Progress, error) {
	var p models.Progress
	var updatedAt string
	err := row.Scan(&p.ID, &p.UserID, &p.LessonID, &p.Percent, &updatedAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertJournalEntry appends a JournalEntry and returns its assigned id.
func (s *Store) InsertJournalEntry(ctx context.Context, q queryer, e *models.JournalEntry) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO journal_entries (operation, entity_id, payload, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(e.Operation), string(e.EntityID), e.Payload, e.RetryCount, e.CreatedAt.Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteJournalEntry removes a journal row by id.
func (s *Store) DeleteJournalEntry(ctx context.Context, q queryer, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
	return err
}

// IncrementRetryCount writes currentCount+1, but only if the stored value
// still matches currentCount, making the write idempotent under spurious
// retries from a caller that observed a stale count.
func (s *Store) IncrementRetryCount(ctx context.Context, q queryer, id int64, currentCount int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE journal_entries SET retry_count = ? WHERE id = ? AND retry_count = ?`,
		currentCount+1, id, currentCount)
	return err
}

// MarkProgressSynced sets status=synced on the row with the given id. A
// no-match is not reported as an error by this method; callers that care
// should check RowsAffected via a dedicated query.
func (s *Store) MarkProgressSynced(ctx context.Context, q queryer, id models.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE progresses SET status = ? WHERE id = ?`, string(models.StatusSynced), string(id))
	return err
}

// PendingJournal scans JournalEntries with retryCount < maxRetry, in
// insertion-id order — the queue scan used by the Upload phase.
func (s *Store) PendingJournal(ctx context.Context, q queryer, maxRetry int) ([]*models.JournalEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, operation, entity_id, payload, retry_count, created_at
		FROM journal_entries WHERE retry_count < ? ORDER BY id ASC`, maxRetry)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Operation, &e.EntityID, &e.Payload, &e.RetryCount, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// JournalCount returns the total number of journal rows, unfiltered by
// retry cap — backing the "watch pending sync items" style stream, which
// spec treats as independent from the retry-capped processing scan.
func (s *Store) JournalCount(ctx context.Context, q queryer) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries`).Scan(&n)
	return n, err
}

// ListUsers returns every User row, ordered by id.
func (s *Store) ListUsers(ctx context.Context, q queryer) ([]*models.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, display_name, contact, updated_at, status FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		var updatedAt string
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Contact, &updatedAt, &u.Status); err != nil {
			return nil, err
		}
		u.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// ListLessons returns every Lesson row, ordered by id.
func (s *Store) ListLessons(ctx context.Context, q queryer) ([]*models.Lesson, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, title, description, duration_min, updated_at, status FROM lessons ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []*models.Lesson
	for rows.Next() {
		var l models.Lesson
		var updatedAt string
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.DurationMin, &updatedAt, &l.Status); err != nil {
			return nil, err
		}
		l.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, &l)
	}
	return lessons, rows.Err()
}

// ListProgresses returns every Progress row, ordered by id.
func (s *Store) ListProgresses(ctx context.Context, q queryer) ([]*models.Progress, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, user_id, lesson_id, percent, updated_at, status FROM progresses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Progress
	for rows.Next() {
		var p models.Progress
		var updatedAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.LessonID, &p.Percent, &updatedAt, &p.Status); err != nil {
			return nil, err
		}
		p.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// PublishSnapshots re-reads every table and publishes the current contents
// to each table's broadcaster, so subscribers observe commit-ordered
// updates (§5 ordering guarantees). The Repository calls it after
// UpdateProgress, MarkProgressSynced, DeleteJournalEntry and an accepted
// UpsertProgressIfNewer; UpsertUser, UpsertLesson and IncrementRetryCount
// do not call it, so their changes reach subscribers only with the next
// publish.
func (s *Store) PublishSnapshots(ctx context.Context) error {
	users, err := s.ListUsers(ctx, s.db)
	if err != nil {
		return err
	}
	if data, err := json.Marshal(users); err == nil {
		s.Users.Publish(data)
	}

	lessons, err := s.ListLessons(ctx, s.db)
	if err != nil {
		return err
	}
	if data, err := json.Marshal(lessons); err == nil {
		s.Lessons.Publish(data)
	}

	progresses, err := s.ListProgresses(ctx, s.db)
	if err != nil {
		return err
	}
	if data, err := json.Marshal(progresses); err == nil {
		s.Progresses.Publish(data)
	}

	count, err := s.JournalCount(ctx, s.db)
	if err != nil {
		return err
	}
	if data, err := json.Marshal(count); err == nil {
		s.JournalCounts.Publish(data)
	}
	return nil
}

// DB exposes the underlying *sql.DB for read-only callers (e.g. the
// Repository's pass-through queries) that don't need a transaction.
func (s *Store) DB() *sql.DB {
	return s.db
}
