// Package id provides UUIDv7 identifiers for all entities.
// UUIDv7 is time-ordered, so freshly created rows sort naturally by
// creation time.
package id

import "github.com/google/uuid"

// ID is the identifier type shared by every entity.
type ID = uuid.UUID

// New generates a time-ordered UUIDv7, falling back to a random UUIDv4
// when the system clock source fails.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts a string to an ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// Nil returns the zero-value ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
