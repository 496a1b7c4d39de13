package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync cycle is already running for
	// the account.
	ErrSyncInProgress = errors.New("sync in progress")

	// Synchronisation error taxonomy.

	// ErrAuthExpired indicates the refresh token is invalid or revoked.
	// The account requires re-authentication; no further work is done for
	// it until the user reconnects.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrTransient indicates a network or server-side failure.
	// The operation is retried on the next scheduled cycle, never
	// immediately.
	ErrTransient = errors.New("transient remote error")

	// ErrValidation indicates a required remote identifier is missing.
	// Fatal for the single operation that raised it.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates the remote and local copies have diverged.
	// Requires explicit resolution; never auto-overwritten.
	ErrConflict = errors.New("conflicting remote state")

	// ErrCapability indicates a write was attempted against an account
	// whose sync direction is read-only.
	ErrCapability = errors.New("capability not permitted")
)
