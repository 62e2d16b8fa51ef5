// Package uuid generates the entity ids this core assigns to new Progress
// rows. Every other id in this domain is opaque (seed ids like "u1",
// Remote Gateway document ids of unspecified format), so there is no
// validation or parsing surface worth carrying here beyond generation.
package uuid

import "github.com/google/uuid"

// New generates a new UUID v4 string, used as the id for every Progress
// row the Repository creates.
func New() string {
	return uuid.New().String()
}
