// Package sections declares every persisted state section and the small
// record types that have no package of their own.
package sections

import (
	"time"

	"github.com/boshu2/gatekeeper/internal/approval"
	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/state"
)

// HistoryCap is the number of recent actions kept for failure-rate checks.
const HistoryCap = 50

// Section handles. Session-scoped sections are reset by `gk session start`.
var (
	Research     = state.Section[progress.State]{Name: "research", Default: progress.Default}
	Startup      = state.Section[progress.State]{Name: "startup_gate", Default: progress.Default}
	Verification = state.Section[progress.State]{Name: "verification", Default: progress.Default}
	Breaker      = state.Section[breaker.State]{Name: "circuit_breaker", Default: breaker.Default}
	EditAttempts = state.Section[limiter.State]{Name: "edit_attempts", Default: limiter.Default}
	Planning     = state.Section[limiter.Planning]{Name: "planning", Default: limiter.DefaultPlanning}
	Refusal      = state.Section[refusal.State]{Name: "refusal_tracking", Default: refusal.Default}
	Approvals    = state.Section[approval.State]{Name: "approvals", Default: approval.Default}
	History      = state.Section[HistoryState]{Name: "history", Default: DefaultHistory}
	Patterns     = state.Section[PatternState]{Name: "patterns", Default: DefaultPatterns}
	Stats        = state.Section[StatsState]{Name: "stats", Default: DefaultStats}
)

// Names lists every section in a stable order.
var Names = []string{
	Research.Name, Startup.Name, Verification.Name, Breaker.Name, EditAttempts.Name,
	Planning.Name, Refusal.Name, Approvals.Name, History.Name, Patterns.Name, Stats.Name,
}

// ActionRecord is one executed action in the recent history.
type ActionRecord struct {
	Tool      string    `json:"tool"`
	Kind      string    `json:"kind"`
	Success   bool      `json:"success"`
	Signature string    `json:"signature,omitempty"`
	At        time.Time `json:"at"`
}

// HistoryState is the persisted history section.
type HistoryState struct {
	Actions []ActionRecord `json:"actions"`
}

// DefaultHistory returns an empty history.
func DefaultHistory() HistoryState {
	return HistoryState{Actions: []ActionRecord{}}
}

// Append adds rec and drops the oldest entries beyond HistoryCap.
func (h *HistoryState) Append(rec ActionRecord) {
	h.Actions = append(h.Actions, rec)
	if over := len(h.Actions) - HistoryCap; over > 0 {
		h.Actions = append([]ActionRecord(nil), h.Actions[over:]...)
	}
}

// FailureRate is the number of failures among the last window actions
// divided by window. A short history counts its missing slots as
// successes, so one early failure is not a 100% rate.
func (h HistoryState) FailureRate(window int) float64 {
	if window <= 0 || len(h.Actions) == 0 {
		return 0
	}
	recent := h.Actions
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	failed := 0
	for _, a := range recent {
		if !a.Success {
			failed++
		}
	}
	return float64(failed) / float64(window)
}

// PatternState tallies gaming patterns across sessions.
type PatternState struct {
	Counts   map[string]int       `json:"counts"`
	LastSeen map[string]time.Time `json:"last_seen"`
}

// DefaultPatterns returns empty tallies.
func DefaultPatterns() PatternState {
	return PatternState{Counts: map[string]int{}, LastSeen: map[string]time.Time{}}
}

// Observe counts one occurrence of pattern.
func (p *PatternState) Observe(pattern string, now time.Time) {
	if p.Counts == nil {
		p.Counts = map[string]int{}
	}
	if p.LastSeen == nil {
		p.LastSeen = map[string]time.Time{}
	}
	p.Counts[pattern]++
	p.LastSeen[pattern] = now.UTC()
}

// StatsState tallies decisions.
type StatsState struct {
	Allow          int            `json:"allow"`
	Warn           int            `json:"warn"`
	Block          int            `json:"block"`
	ByGuard        map[string]int `json:"by_guard"`
	LastDecisionAt *time.Time     `json:"last_decision_at,omitempty"`
}

// DefaultStats returns zero tallies.
func DefaultStats() StatsState {
	return StatsState{ByGuard: map[string]int{}}
}
