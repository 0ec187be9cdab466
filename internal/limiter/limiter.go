// Package limiter bounds consecutive edit attempts and owns the planning
// section that a forced replan revokes.
package limiter

import "time"

// DefaultMax is the edit attempt that forces a replan.
const DefaultMax = 3

// Outcome is what the limiter decides for the next edit.
type Outcome int

const (
	// OutcomeAllow lets the edit through and counts it.
	OutcomeAllow Outcome = iota
	// OutcomeWarn lets the edit through; the following one forces a replan.
	OutcomeWarn
	// OutcomeReplan blocks the edit and resets the task to planning.
	OutcomeReplan
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWarn:
		return "warn"
	case OutcomeReplan:
		return "replan"
	default:
		return "allow"
	}
}

// State is the persisted edit_attempts section.
type State struct {
	Count      int        `json:"count"`
	Max        int        `json:"max"`
	LastTarget string     `json:"last_target,omitempty"`
	LastAt     *time.Time `json:"last_at,omitempty"`
}

// Default returns a zero counter with the default limit.
func Default() State {
	return State{Max: DefaultMax}
}

// Limit returns the effective maximum, falling back to configured then
// DefaultMax when unset.
func (s State) Limit(configured int) int {
	switch {
	case configured > 0:
		return configured
	case s.Max > 0:
		return s.Max
	default:
		return DefaultMax
	}
}

// Next reports what happens to the edit that would become attempt
// Count+1 under limit.
func (s State) Next(limit int) Outcome {
	next := s.Count + 1
	switch {
	case next >= limit:
		return OutcomeReplan
	case next == limit-1:
		return OutcomeWarn
	default:
		return OutcomeAllow
	}
}

// Remaining is how many more edits pass before a replan.
func (s State) Remaining(limit int) int {
	if r := limit - 1 - s.Count; r > 0 {
		return r
	}
	return 0
}

// Increment counts an allowed edit on target.
func (s *State) Increment(target string, now time.Time, limit int) {
	t := now.UTC()
	s.Count++
	s.Max = limit
	s.LastTarget = target
	s.LastAt = &t
}

// Clear resets the counter, keeping the limit.
func (s *State) Clear() {
	s.Count = 0
	s.LastTarget = ""
	s.LastAt = nil
}

// Planning is the persisted planning section.
type Planning struct {
	PlanApproved bool       `json:"plan_approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ReplanCount  int        `json:"replan_count"`
	LastReplanAt *time.Time `json:"last_replan_at,omitempty"`
}

// DefaultPlanning returns an unapproved plan.
func DefaultPlanning() Planning {
	return Planning{}
}

// Approve marks the plan approved by an operator.
func (p *Planning) Approve(by string, now time.Time) {
	t := now.UTC()
	p.PlanApproved = true
	p.ApprovedAt = &t
	p.ApprovedBy = by
}

// Replan revokes any approval and counts the forced replan.
func (p *Planning) Replan(now time.Time) {
	t := now.UTC()
	p.PlanApproved = false
	p.ApprovedAt = nil
	p.ApprovedBy = ""
	p.ReplanCount++
	p.LastReplanAt = &t
}
