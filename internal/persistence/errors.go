package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrCorruptSnapshot is returned when a stored snapshot no longer matches its digest.
	ErrCorruptSnapshot = errors.New("persistence: corrupt snapshot")
)
