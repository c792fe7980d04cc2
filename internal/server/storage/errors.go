package storage

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("entity not found")
)
