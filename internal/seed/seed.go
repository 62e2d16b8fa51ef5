// Package seed loads a demo fixture of users and lessons from a YAML file,
// for use by the optional demo/observability binaries in cmd/. Nothing in
// the sync core itself depends on this package: it exists purely so a
// deployment can hand cmd/core a starting dataset without hand-editing
// Go source.
//
// Grounded on the use of gopkg.in/yaml.v3 elsewhere in the example pack for
// declarative fixture/config loading; there is no equivalent file in the
// teacher itself, since memoNexus has no seed-data concept.
package seed

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mohamed352/edusync/internal/models"
)

// Fixture is the on-disk YAML shape: a flat list of users and lessons.
type Fixture struct {
	Users []struct {
		ID          string `yaml:"id"`
		DisplayName string `yaml:"displayName"`
		Contact     string `yaml:"contact"`
	} `yaml:"users"`
	Lessons []struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		DurationMin int    `yaml:"durationMinutes"`
	} `yaml:"lessons"`
}

// Load reads and parses a Fixture from path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse fixture: %w", err)
	}
	return &f, nil
}

// UserDocuments converts the fixture's users into the wire shape the mock
// gateway serves back on the next Phase D download.
func (f *Fixture) UserDocuments(now time.Time) []models.UserDocument {
	docs := make([]models.UserDocument, 0, len(f.Users))
	for _, u := range f.Users {
		docs = append(docs, models.UserDocument{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Contact:     u.Contact,
			UpdatedAt:   now,
		})
	}
	return docs
}

// LessonDocuments converts the fixture's lessons into the wire shape the
// mock gateway serves back on the next Phase D download.
func (f *Fixture) LessonDocuments(now time.Time) []models.LessonDocument {
	docs := make([]models.LessonDocument, 0, len(f.Lessons))
	for _, l := range f.Lessons {
		docs = append(docs, models.LessonDocument{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			DurationMin: l.DurationMin,
			UpdatedAt:   now,
		})
	}
	return docs
}

// Default returns a small built-in fixture, used when no --seed file is
// given, so the demo binaries always have something to sync.
func Default() *Fixture {
	return &Fixture{
		Users: []struct {
			ID          string `yaml:"id"`
			DisplayName string `yaml:"displayName"`
			Contact     string `yaml:"contact"`
		}{
			{ID: "u1", DisplayName: "Amara Okafor", Contact: "amara@example.com"},
			{ID: "u2", DisplayName: "Ravi Shah", Contact: "ravi@example.com"},
		},
		Lessons: []struct {
			ID          string `yaml:"id"`
			Title       string `yaml:"title"`
			Description string `yaml:"description"`
			DurationMin int    `yaml:"durationMinutes"`
		}{
			{ID: "l1", Title: "Intro to Fractions", Description: "Basic fraction arithmetic", DurationMin: 20},
			{ID: "l2", Title: "Reading Comprehension", Description: "Short passages with questions", DurationMin: 15},
		},
	}
}
