package engine

import "errors"

var (
	// ErrNoOperator is returned when an override names no operator.
	ErrNoOperator = errors.New("override requires an operator")

	// ErrUnknownTarget is returned for a reset target gk does not know.
	ErrUnknownTarget = errors.New("unknown reset target")

	// ErrUnknownGate is returned for a gate name gk does not know.
	ErrUnknownGate = errors.New("unknown gate")

	// ErrAuditFailed is returned when an override was applied but could not
	// be appended to the audit ledger.
	ErrAuditFailed = errors.New("override applied but audit append failed")
)
