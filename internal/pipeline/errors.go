package pipeline

import "errors"

var (
	// ErrGuardPanic wraps a panic recovered from a guard.
	ErrGuardPanic = errors.New("guard panicked")

	// ErrClaimLost is returned by a claim effect whose precondition no
	// longer holds under the section lock.
	ErrClaimLost = errors.New("claim lost to a concurrent invocation")

	// ErrInvalidRule is returned by the pattern guard for an unusable rule.
	ErrInvalidRule = errors.New("invalid pattern rule")
)
