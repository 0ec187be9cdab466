package state

import "errors"

// Sentinel errors for the state package. Callers match with errors.Is.
var (
	// ErrTampered is returned when a persisted envelope fails verification.
	// Get never surfaces it: a tampered section reads as absent.
	ErrTampered = errors.New("state envelope failed verification")

	// ErrLockTimeout is returned when a section lock cannot be acquired
	// within the configured timeout.
	ErrLockTimeout = errors.New("timed out acquiring section lock")

	// ErrWriteFailed is returned when the signed write failed twice.
	// The computed value is still returned alongside it.
	ErrWriteFailed = errors.New("state write failed")

	// ErrSecretTooShort is returned when the signing secret is below the minimum length.
	ErrSecretTooShort = errors.New("signing secret must be at least 16 bytes")

	// ErrInvalidSectionName is returned for section names that are not plain identifiers.
	ErrInvalidSectionName = errors.New("invalid section name")
)
