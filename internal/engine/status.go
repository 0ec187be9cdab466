package engine

import (
	"errors"
	"os"
	"sort"

	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// EditStatus is the edit counter against its limit.
type EditStatus struct {
	Count     int `json:"count" yaml:"count"`
	Limit     int `json:"limit" yaml:"limit"`
	Remaining int `json:"remaining" yaml:"remaining"`
}

// GateStatus is the evaluated state of one progress gate.
type GateStatus struct {
	Name      string   `json:"name" yaml:"name"`
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Satisfied bool     `json:"satisfied" yaml:"satisfied"`
	Required  []string `json:"required" yaml:"required"`
	Missing   []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Completed []string `json:"completed,omitempty" yaml:"completed,omitempty"`
	Skipped   []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Trivial   []string `json:"trivial,omitempty" yaml:"trivial,omitempty"`
	Gaming    []string `json:"gaming,omitempty" yaml:"gaming,omitempty"`
}

// Status is a read-only view of every section.
type Status struct {
	StateDir         string              `json:"state_dir" yaml:"state_dir"`
	Breaker          breaker.State       `json:"breaker" yaml:"breaker"`
	Refusal          refusal.State       `json:"refusal" yaml:"refusal"`
	Edits            EditStatus          `json:"edits" yaml:"edits"`
	Planning         limiter.Planning    `json:"planning" yaml:"planning"`
	Gates            []GateStatus        `json:"gates" yaml:"gates"`
	PendingApprovals []string            `json:"pending_approvals" yaml:"pending_approvals"`
	Patterns         map[string]int      `json:"patterns" yaml:"patterns"`
	Stats            sections.StatsState `json:"stats" yaml:"stats"`

	// Tampered lists sections whose document exists but failed verification.
	// They are read as defaults.
	Tampered []string `json:"tampered,omitempty" yaml:"tampered,omitempty"`
}

// Status reads every section without taking a lock.
func (e *Engine) Status() Status {
	edits := state.Get(e.store, sections.EditAttempts)
	limit := edits.Limit(e.cfg.Edits.MaxAttempts)

	st := Status{
		StateDir: e.store.Dir(),
		Breaker:  state.Get(e.store, sections.Breaker),
		Refusal:  state.Get(e.store, sections.Refusal),
		Edits: EditStatus{
			Count:     edits.Count,
			Limit:     limit,
			Remaining: edits.Remaining(limit),
		},
		Planning:         state.Get(e.store, sections.Planning),
		PendingApprovals: sortedKeys(state.Get(e.store, sections.Approvals).Pending),
		Patterns:         state.Get(e.store, sections.Patterns).Counts,
		Stats:            state.Get(e.store, sections.Stats),
	}

	for _, gb := range e.gates() {
		g := gb.build(e.cfg, state.Get(e.store, gb.section))
		gs := GateStatus{Name: gb.label, Enabled: gb.conf.Enabled(), Required: g.Required()}
		if gs.Enabled {
			r := g.Evaluate()
			gs.Satisfied = r.Satisfied
			gs.Missing = r.Missing
			gs.Completed = r.Completed
			gs.Skipped = r.Skipped
			gs.Trivial = r.Trivial
			for _, f := range r.Gaming {
				gs.Gaming = append(gs.Gaming, string(f.Pattern)+": "+f.Detail)
			}
		}
		st.Gates = append(st.Gates, gs)
	}

	st.Tampered = e.tampered()
	return st
}

func (e *Engine) tampered() []string {
	checks := map[string]bool{
		sections.Research.Name:     state.Exists(e.store, sections.Research),
		sections.Startup.Name:      state.Exists(e.store, sections.Startup),
		sections.Verification.Name: state.Exists(e.store, sections.Verification),
		sections.Breaker.Name:      state.Exists(e.store, sections.Breaker),
		sections.EditAttempts.Name: state.Exists(e.store, sections.EditAttempts),
		sections.Planning.Name:     state.Exists(e.store, sections.Planning),
		sections.Refusal.Name:      state.Exists(e.store, sections.Refusal),
		sections.Approvals.Name:    state.Exists(e.store, sections.Approvals),
		sections.History.Name:      state.Exists(e.store, sections.History),
		sections.Patterns.Name:     state.Exists(e.store, sections.Patterns),
		sections.Stats.Name:        state.Exists(e.store, sections.Stats),
	}
	var out []string
	for name, verified := range checks {
		if verified {
			continue
		}
		if _, err := os.Stat(e.store.Path(name)); err == nil || !errors.Is(err, os.ErrNotExist) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
