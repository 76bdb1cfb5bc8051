package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque UUID string used for every entity in the system.
type ID string

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}

// NewID generates a new random ID.
func NewID() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return ID(u.String()), nil
}

// MustNewID generates a new ID and panics on failure. Random UUID
// generation only fails when the OS entropy source is broken.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that the raw string is a well-formed UUID.
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return "", NewError(CodeValidationError, "empty ID", nil)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid ID format: %q", raw), nil)
	}
	return ID(raw), nil
}
