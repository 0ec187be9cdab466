package progress

import "errors"

// Sentinel errors for the progress package.
var (
	// ErrSkipWithoutAttempt is returned when a skip is requested for a
	// category that has no recorded attempt.
	ErrSkipWithoutAttempt = errors.New("category cannot be skipped before it was attempted at least once")

	// ErrUnknownCategory is returned for a category the gate does not define.
	ErrUnknownCategory = errors.New("unknown category")
)
