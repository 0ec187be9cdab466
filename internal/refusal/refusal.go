// Package refusal escalates repeated blocks of the same type until the
// pipeline halts and an operator has to unblock it.
package refusal

import (
	"fmt"
	"time"
)

// BlockType classifies why an action was blocked. Escalation counts per type,
// independent of the tool that triggered it.
type BlockType string

const (
	ResearchIncomplete     BlockType = "research_incomplete"
	StartupIncomplete      BlockType = "startup_incomplete"
	VerificationIncomplete BlockType = "verification_incomplete"
	GamingDetected         BlockType = "gaming_detected"
	EditLimit              BlockType = "edit_limit"
	SensitiveTarget        BlockType = "sensitive_target"
	PlanRequired           BlockType = "plan_required"
	DangerousPath          BlockType = "dangerous_path"
	SelfProtection         BlockType = "self_protection"
	PatternRule            BlockType = "pattern_rule"

	// Halts and guard failures are never escalated.
	GuardFailure   BlockType = "guard_failure"
	BreakerTripped BlockType = "circuit_breaker"
	RefusalHalt    BlockType = "refusal_halt"
)

// Escalates reports whether blocks of this type feed the escalator.
func (b BlockType) Escalates() bool {
	switch b {
	case "", GuardFailure, BreakerTripped, RefusalHalt:
		return false
	}
	return true
}

// Severity is the escalation level of a repeated block.
type Severity int

const (
	Informational Severity = iota + 1
	Warning
	Halt
)

func (s Severity) String() string {
	switch s {
	case Informational:
		return "informational"
	case Warning:
		return "warning"
	case Halt:
		return "halt"
	default:
		return "none"
	}
}

// DefaultHaltAfter is the occurrence count that halts the pipeline.
const DefaultHaltAfter = 3

// Entry tracks one block type.
type Entry struct {
	Count    int       `json:"count"`
	LastTool string    `json:"last_tool,omitempty"`
	LastAt   time.Time `json:"last_at"`
}

// State is the persisted refusal_tracking section.
type State struct {
	Entries    map[BlockType]Entry `json:"entries"`
	Halted     bool                `json:"halted"`
	HaltedType BlockType           `json:"halted_type,omitempty"`
	HaltedAt   *time.Time          `json:"halted_at,omitempty"`
}

// Default returns a state with no refusals.
func Default() State {
	return State{Entries: map[BlockType]Entry{}}
}

// Escalate counts another block of type bt from tool and returns its
// severity. The haltAfter-th occurrence and every later one halt.
func (s *State) Escalate(bt BlockType, tool string, now time.Time, haltAfter int) Severity {
	if haltAfter <= 1 {
		haltAfter = DefaultHaltAfter
	}
	if s.Entries == nil {
		s.Entries = map[BlockType]Entry{}
	}
	e := s.Entries[bt]
	e.Count++
	e.LastTool = tool
	e.LastAt = now.UTC()
	s.Entries[bt] = e

	switch {
	case e.Count >= haltAfter:
		if !s.Halted {
			t := now.UTC()
			s.Halted = true
			s.HaltedType = bt
			s.HaltedAt = &t
		}
		return Halt
	case e.Count >= 2:
		return Warning
	default:
		return Informational
	}
}

// Clear forgets the counter for bt once its underlying condition holds.
// An active halt is untouched.
func (s *State) Clear(bt BlockType) bool {
	if _, ok := s.Entries[bt]; !ok {
		return false
	}
	delete(s.Entries, bt)
	return true
}

// Unblock clears every counter and the halt. Only the operator path calls it.
func (s *State) Unblock() {
	*s = Default()
}

// Annotation is the text appended to a block diagnostic at severity sev.
func Annotation(bt BlockType, sev Severity, count int) string {
	switch sev {
	case Warning:
		return fmt.Sprintf("You were already told this (%s, %d times). Do not retry blindly: satisfy the requirement above first.", bt, count)
	case Halt:
		return fmt.Sprintf("HALTED: %s was blocked %d times. Every action is now blocked until the operator runs `gk unblock`.", bt, count)
	default:
		return ""
	}
}
