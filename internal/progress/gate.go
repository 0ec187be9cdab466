// Package progress implements the generic multi-category completion gate
// used for research, startup readiness, and tool verification.
//
// A gate is satisfied only when every required category is completed or
// skipped AND none of the gaming heuristics fire. Gaming detection is never
// advisory: any finding forces the gate back to not satisfied.
package progress

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Default anti-gaming thresholds.
const (
	// DefaultRapidWindow is the minimum plausible span between the first and
	// last completion across required categories.
	DefaultRapidWindow = 30 * time.Second

	// DefaultIdenticalCount is how many categories sharing one exact
	// completion timestamp counts as fabricated.
	DefaultIdenticalCount = 3

	// DefaultStuffingRate is the failure rate over the preceding window at
	// which a completing success is treated as brute-forced.
	DefaultStuffingRate = 0.7

	// DefaultStuffingWindow is how many preceding actions are considered.
	DefaultStuffingWindow = 10

	// DefaultMinEvidence is the minimum evidence length for a completion.
	DefaultMinEvidence = 50
)

// Pattern names a gaming heuristic.
type Pattern string

const (
	PatternRapidCompletion     Pattern = "rapid_completion"
	PatternIdenticalTimestamps Pattern = "identical_timestamps"
	PatternErrorStuffing       Pattern = "error_stuffing"
)

// trivialEvidenceRe matches outputs that prove nothing was found.
var trivialEvidenceRe = regexp.MustCompile(`(?i)^\s*(0 results?( found)?|no results?( found)?|no matches( found)?|not found|nothing found|\[\]|\{\}|null)\s*\.?\s*$`)

// Definition describes how actions complete one category.
type Definition struct {
	// ID is the category name (e.g. "docs").
	ID string `yaml:"id" json:"id" validate:"required"`

	// Tools are glob patterns over tool names (e.g. "mcp__context7__*").
	Tools []string `yaml:"tools" json:"tools,omitempty"`

	// CommandPattern optionally matches shell commands that count for this category.
	CommandPattern string `yaml:"command_pattern" json:"command_pattern,omitempty" validate:"omitempty,regexp"`

	// MinOutput overrides the gate-wide minimum evidence length.
	MinOutput int `yaml:"min_output" json:"min_output,omitempty" validate:"gte=0"`
}

// CategoryState is the persisted progress of one category.
type CategoryState struct {
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Evidence          string     `json:"evidence,omitempty"`
	Skipped           bool       `json:"skipped,omitempty"`
	SkipApprovedBy    string     `json:"skip_approved_by,omitempty"`
	Attempts          int        `json:"attempts"`
	FailureRateBefore float64    `json:"failure_rate_before,omitempty"`
}

// State is the persisted section for one gate.
type State struct {
	Categories map[string]CategoryState `json:"categories"`
}

// Default returns an all-pending gate state.
func Default() State {
	return State{Categories: map[string]CategoryState{}}
}

// Thresholds tunes the gaming heuristics.
type Thresholds struct {
	RapidWindow    time.Duration
	IdenticalCount int
	StuffingRate   float64
	StuffingWindow int
	MinEvidence    int
}

// DefaultThresholds returns the named default constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RapidWindow:    DefaultRapidWindow,
		IdenticalCount: DefaultIdenticalCount,
		StuffingRate:   DefaultStuffingRate,
		StuffingWindow: DefaultStuffingWindow,
		MinEvidence:    DefaultMinEvidence,
	}
}

// Gate combines category definitions with persisted state.
type Gate struct {
	Name       string
	Defs       []Definition
	Thresholds Thresholds
	State      State
}

// New builds a gate over defs. The order of defs is the required order.
func New(name string, defs []Definition, th Thresholds, st State) *Gate {
	if st.Categories == nil {
		st.Categories = map[string]CategoryState{}
	}
	return &Gate{Name: name, Defs: defs, Thresholds: th, State: st}
}

// Required returns the required category IDs in definition order.
func (g *Gate) Required() []string {
	ids := make([]string, 0, len(g.Defs))
	for _, d := range g.Defs {
		ids = append(ids, d.ID)
	}
	return ids
}

func (g *Gate) def(id string) (Definition, bool) {
	for _, d := range g.Defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

func (g *Gate) minEvidence(id string) int {
	if d, ok := g.def(id); ok && d.MinOutput > 0 {
		return d.MinOutput
	}
	return g.Thresholds.MinEvidence
}

// Finding is one gaming heuristic that fired.
type Finding struct {
	Pattern Pattern `json:"pattern"`
	Detail  string  `json:"detail"`
}

// Result is the outcome of a satisfaction check.
type Result struct {
	Satisfied bool      `json:"satisfied"`
	Missing   []string  `json:"missing,omitempty"`
	Completed []string  `json:"completed,omitempty"`
	Skipped   []string  `json:"skipped,omitempty"`
	Trivial   []string  `json:"trivial,omitempty"`
	Gaming    []Finding `json:"gaming,omitempty"`
}

// Evaluate checks satisfaction without mutating the gate. Categories whose
// evidence is trivial count as pending.
func (g *Gate) Evaluate() Result {
	var r Result
	var times []time.Time

	for _, id := range g.Required() {
		cs := g.State.Categories[id]
		switch {
		case cs.Skipped:
			r.Skipped = append(r.Skipped, id)
		case cs.CompletedAt != nil && IsTrivial(cs.Evidence, g.minEvidence(id)):
			r.Trivial = append(r.Trivial, id)
			r.Missing = append(r.Missing, id)
		case cs.CompletedAt != nil:
			r.Completed = append(r.Completed, id)
			times = append(times, *cs.CompletedAt)
		default:
			r.Missing = append(r.Missing, id)
		}
	}

	if len(r.Missing) == 0 {
		r.Gaming = g.detectGaming(r.Completed, times)
	}
	r.Satisfied = len(r.Missing) == 0 && len(r.Gaming) == 0
	return r
}

func (g *Gate) detectGaming(completed []string, times []time.Time) []Finding {
	var findings []Finding
	th := g.Thresholds

	if len(times) >= 2 && th.RapidWindow > 0 {
		earliest, latest := times[0], times[0]
		for _, t := range times[1:] {
			if t.Before(earliest) {
				earliest = t
			}
			if t.After(latest) {
				latest = t
			}
		}
		if span := latest.Sub(earliest); span < th.RapidWindow {
			findings = append(findings, Finding{
				Pattern: PatternRapidCompletion,
				Detail:  "all categories completed within " + span.Round(time.Millisecond).String() + " (minimum " + th.RapidWindow.String() + ")",
			})
		}
	}

	if th.IdenticalCount > 0 {
		groups := map[int64][]string{}
		for _, id := range completed {
			cs := g.State.Categories[id]
			key := cs.CompletedAt.UnixNano()
			groups[key] = append(groups[key], id)
		}
		keys := make([]int64, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			if ids := groups[k]; len(ids) >= th.IdenticalCount {
				findings = append(findings, Finding{
					Pattern: PatternIdenticalTimestamps,
					Detail:  strings.Join(ids, ", ") + " share one completion timestamp",
				})
			}
		}
	}

	if th.StuffingRate > 0 {
		for _, id := range completed {
			if rate := g.State.Categories[id].FailureRateBefore; rate >= th.StuffingRate {
				findings = append(findings, Finding{
					Pattern: PatternErrorStuffing,
					Detail:  id + " completed right after a " + formatPercent(rate) + " failure streak",
				})
			}
		}
	}
	return findings
}

// RecordAttempt notes that an action targeted category id.
func (g *Gate) RecordAttempt(id string) {
	cs := g.State.Categories[id]
	cs.Attempts++
	g.State.Categories[id] = cs
}

// Complete records evidence for category id. A category that already holds
// non-trivial evidence keeps its original completion.
func (g *Gate) Complete(id, evidence string, at time.Time, failureRateBefore float64) bool {
	cs := g.State.Categories[id]
	cs.Attempts++
	if cs.Skipped || (cs.CompletedAt != nil && !IsTrivial(cs.Evidence, g.minEvidence(id))) {
		g.State.Categories[id] = cs
		return false
	}
	if IsTrivial(evidence, g.minEvidence(id)) {
		g.State.Categories[id] = cs
		return false
	}
	t := at.UTC()
	cs.CompletedAt = &t
	cs.Evidence = truncateEvidence(evidence)
	cs.FailureRateBefore = failureRateBefore
	g.State.Categories[id] = cs
	return true
}

// Skip marks category id skipped on behalf of an operator. It is rejected
// unless the category was attempted at least once.
func (g *Gate) Skip(id, by string) error {
	if _, ok := g.def(id); !ok {
		return ErrUnknownCategory
	}
	cs := g.State.Categories[id]
	if cs.Attempts == 0 {
		return ErrSkipWithoutAttempt
	}
	cs.Skipped = true
	cs.SkipApprovedBy = by
	g.State.Categories[id] = cs
	return nil
}

// InvalidateTrivial resets completed categories whose evidence is trivial
// back to pending and returns their IDs.
func (g *Gate) InvalidateTrivial() []string {
	var reset []string
	for _, id := range g.Required() {
		cs, ok := g.State.Categories[id]
		if !ok || cs.CompletedAt == nil || cs.Skipped {
			continue
		}
		if IsTrivial(cs.Evidence, g.minEvidence(id)) {
			cs.CompletedAt = nil
			cs.Evidence = ""
			cs.FailureRateBefore = 0
			g.State.Categories[id] = cs
			reset = append(reset, id)
		}
	}
	return reset
}

// ResetAll returns every category to pending, attempts included.
func (g *Gate) ResetAll() {
	g.State = Default()
}

// Matching returns the IDs of categories an action with the given tool name
// and shell command counts toward, in required order.
func (g *Gate) Matching(tool, command string) []string {
	var ids []string
	for _, d := range g.Defs {
		if Matches(d, tool, command) {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Matches reports whether an action counts toward def: its tool name
// matches one of def.Tools, or its shell command matches def.CommandPattern.
func Matches(def Definition, tool, command string) bool {
	for _, pattern := range def.Tools {
		if ok, _ := path.Match(pattern, tool); ok {
			return true
		}
	}
	if def.CommandPattern == "" || command == "" {
		return false
	}
	re, err := regexp.Compile(def.CommandPattern)
	if err != nil {
		return false
	}
	return re.MatchString(command)
}

// IsTrivial reports whether evidence is empty, shorter than min, or an
// explicit empty result.
func IsTrivial(evidence string, min int) bool {
	trimmed := strings.TrimSpace(evidence)
	if trimmed == "" || trivialEvidenceRe.MatchString(trimmed) {
		return true
	}
	return len(trimmed) < min
}

func truncateEvidence(s string) string {
	const max = 500
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}
