package storage

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist locally
	// or is tombstoned.
	ErrNotFound = errors.New("row not found")
	// ErrStorageClosed is returned when the database handle is gone.
	ErrStorageClosed = errors.New("storage is closed")
)
