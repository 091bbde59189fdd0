package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a lost optimistic concurrency race.
	ErrConflict = errors.New("repository: conflict")
	// ErrDuplicate indicates a uniqueness violation on a natural key.
	ErrDuplicate = errors.New("repository: duplicate")
)
