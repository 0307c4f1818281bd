package types

import (
	"github.com/google/uuid"
)

// RunID identifies one bulk validation run.
type RunID string

// NewRunID generates a UUIDv7 run identifier.
// Time-ordered IDs keep run history inserts clustered.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

// ParseRunID validates and converts a string to RunID.
func ParseRunID(s string) (RunID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RunID(s), nil
}
