// Package breaker implements the persisted circuit breaker that halts an
// agent after repeated failures.
//
// The breaker has two states. Closed is normal operation. Tripped blocks
// every non-bootstrap action and only an external reset returns it to
// Closed; successful actions never clear a trip.
package breaker

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultThreshold is the failure count that trips the breaker, both for
// consecutive failures and for repeats of one error signature.
const DefaultThreshold = 3

// Signature is a normalized error class.
type Signature string

// Known signatures, in match priority order.
const (
	SigCommandNotFound  Signature = "COMMAND_NOT_FOUND"
	SigPermissionDenied Signature = "PERMISSION_DENIED"
	SigFileNotFound     Signature = "FILE_NOT_FOUND"
	SigTimeout          Signature = "TIMEOUT"
	SigSyntaxError      Signature = "SYNTAX_ERROR"
	SigBuildFailed      Signature = "BUILD_FAILED"
	SigTestFailed       Signature = "TEST_FAILED"
	SigGeneric          Signature = "GENERIC_ERROR"
)

// signatureRules is evaluated top to bottom; the first match wins.
var signatureRules = []struct {
	sig Signature
	re  *regexp.Regexp
}{
	{SigCommandNotFound, regexp.MustCompile(`(?i)command not found|not recognized as an internal or external command|executable file not found|no such command|unknown command`)},
	{SigPermissionDenied, regexp.MustCompile(`(?i)permission denied|operation not permitted|access (is )?denied|EACCES|EPERM`)},
	{SigFileNotFound, regexp.MustCompile(`(?i)no such file or directory|file not found|ENOENT|does not exist`)},
	{SigTimeout, regexp.MustCompile(`(?i)timed? ?out|deadline exceeded|ETIMEDOUT`)},
	{SigSyntaxError, regexp.MustCompile(`(?i)syntax error|unexpected token|parse error|unexpected EOF|expected .* found`)},
	{SigBuildFailed, regexp.MustCompile(`(?i)build failed|compilation failed|cannot compile|undefined:|linker command failed|error: could not compile|BUILD FAILED`)},
	{SigTestFailed, regexp.MustCompile(`(?i)tests? failed|FAIL\s|assertion failed|\d+ failing`)},
}

// Normalize maps raw error text to a signature. Text matching no rule is
// SigGeneric.
func Normalize(text string) Signature {
	for _, rule := range signatureRules {
		if rule.re.MatchString(text) {
			return rule.sig
		}
	}
	return SigGeneric
}

// ResetRecord documents an externally approved reset.
type ResetRecord struct {
	By            string    `json:"by"`
	At            time.Time `json:"at"`
	Reason        string    `json:"reason,omitempty"`
	PriorReason   string    `json:"prior_reason,omitempty"`
	PriorFailures int       `json:"prior_failures"`
}

// State is the persisted circuit_breaker section.
type State struct {
	FailureCount    int            `json:"failure_count"`
	Tripped         bool           `json:"tripped"`
	TripReason      string         `json:"trip_reason,omitempty"`
	TrippedAt       *time.Time     `json:"tripped_at,omitempty"`
	ErrorSignatures map[string]int `json:"error_signatures"`
	LastError       string         `json:"last_error,omitempty"`
	LastReset       *ResetRecord   `json:"last_reset,omitempty"`
}

// Default returns a closed breaker.
func Default() State {
	return State{ErrorSignatures: map[string]int{}}
}

// RecordSuccess ends a consecutive-failure streak. Signature counts and a
// trip both survive.
func (s *State) RecordSuccess() {
	s.FailureCount = 0
}

// RecordFailure counts a failure and trips the breaker when either the
// consecutive count or the count for the failure's signature reaches
// threshold. It returns the signature the failure normalized to.
func (s *State) RecordFailure(errText string, now time.Time, threshold int) Signature {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if s.ErrorSignatures == nil {
		s.ErrorSignatures = map[string]int{}
	}

	sig := Normalize(errText)
	s.FailureCount++
	s.ErrorSignatures[string(sig)]++
	s.LastError = truncate(errText, 200)

	if s.Tripped {
		return sig
	}
	switch {
	case s.FailureCount >= threshold:
		s.trip(fmt.Sprintf("%d consecutive failures (last: %s)", s.FailureCount, sig), now)
	case s.ErrorSignatures[string(sig)] >= threshold:
		s.trip(fmt.Sprintf("error signature %s repeated %d times", sig, s.ErrorSignatures[string(sig)]), now)
	}
	return sig
}

func (s *State) trip(reason string, now time.Time) {
	t := now.UTC()
	s.Tripped = true
	s.TripReason = reason
	s.TrippedAt = &t
}

// Reset closes the breaker on behalf of an external operator and returns
// the audit record it stored.
func (s *State) Reset(by, reason string, now time.Time) ResetRecord {
	rec := ResetRecord{
		By:            by,
		At:            now.UTC(),
		Reason:        reason,
		PriorReason:   s.TripReason,
		PriorFailures: s.FailureCount,
	}
	*s = Default()
	s.LastReset = &rec
	return rec
}

// Status returns "CLOSED" or "TRIPPED".
func (s State) Status() string {
	if s.Tripped {
		return "TRIPPED"
	}
	return "CLOSED"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
