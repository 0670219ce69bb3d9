package docstore

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewID returns a new time-ordered identifier.
func NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "generate id")
	}
	return id, nil
}

// ParseID converts a wire identifier to the native type.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.Wrapf(ErrInvalidID, "%q", s)
	}
	return id, nil
}

// FormatID renders the canonical wire form: lowercase, hyphenated.
func FormatID(id uuid.UUID) string { return id.String() }

// CanonicalID normalizes a wire identifier.
func CanonicalID(s string) (string, error) {
	id, err := ParseID(s)
	if err != nil {
		return "", err
	}
	return FormatID(id), nil
}
