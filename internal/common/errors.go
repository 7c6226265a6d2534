// Package common defines shared sentinel errors used across the persistence
// layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Store lifecycle errors.
	ErrConnectionUnavailable = errors.New("store connection unavailable")
	ErrIncompatibleVersion   = errors.New("on-disk schema version is newer than this build")
	ErrMigrationFailed       = errors.New("schema migration failed")

	// Row/payload errors.
	ErrCorruptRecord       = errors.New("corrupt record")
	ErrConstraintViolation = errors.New("constraint violation")

	// I/O errors.
	ErrStorageExhausted = errors.New("storage exhausted")
)
