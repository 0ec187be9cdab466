package engine

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// RecordResult summarizes what one post-action pass changed.
type RecordResult struct {
	Success   bool
	Signature breaker.Signature
	Tripped   bool
	// Completed maps gate section names to categories completed by this action.
	Completed map[string][]string
	// Satisfied lists gates that are satisfied after this action.
	Satisfied    []string
	EditsCleared bool
}

// Record runs the post-action pass for an executed action: the breaker,
// the action history, gate progress and the edit counter.
func (e *Engine) Record(ctx context.Context, a hook.Action, out hook.Outcome) RecordResult {
	now := e.now()
	res := RecordResult{Success: out.Success, Completed: map[string][]string{}}

	b, err := state.Update(ctx, e.store, sections.Breaker, func(b *breaker.State) error {
		if out.Success {
			b.RecordSuccess()
			return nil
		}
		res.Signature = b.RecordFailure(out.ErrorText, now, e.cfg.Breaker.Threshold)
		return nil
	})
	e.warnIf(err, "breaker not persisted")
	res.Tripped = b.Tripped
	if res.Tripped && !out.Success {
		e.logger.Warn("circuit breaker tripped", "reason", b.TripReason, "signature", string(res.Signature))
	}

	// The failure rate is taken before this action joins the history.
	var failureRate float64
	_, err = state.Update(ctx, e.store, sections.History, func(h *sections.HistoryState) error {
		failureRate = h.FailureRate(e.cfg.Gaming.StuffingWindow)
		h.Append(sections.ActionRecord{
			Tool:      a.Tool,
			Kind:      string(a.Kind),
			Success:   out.Success,
			Signature: string(res.Signature),
			At:        now.UTC(),
		})
		return nil
	})
	e.warnIf(err, "history not persisted")

	for _, gb := range e.gates() {
		if !gb.conf.Enabled() {
			continue
		}
		completed, satisfied, err := e.recordGate(ctx, gb, a, out, now, failureRate)
		if err != nil {
			e.logger.Warn("gate progress not persisted", "gate", gb.label, "error", err)
			continue
		}
		if len(completed) > 0 {
			res.Completed[gb.section.Name] = completed
		}
		if satisfied {
			res.Satisfied = append(res.Satisfied, gb.section.Name)
		}
	}

	if a.Kind == hook.KindShell && out.Success && e.isVerifyCommand(a.Command) {
		_, err := state.Update(ctx, e.store, sections.EditAttempts, func(s *limiter.State) error {
			s.Clear()
			return nil
		})
		e.warnIf(err, "edit counter not cleared")
		e.clearRefusal(ctx, refusal.EditLimit)
		res.EditsCleared = err == nil
	}

	e.logger.Info("recorded",
		"tool", a.Tool,
		"kind", string(a.Kind),
		"success", out.Success,
		"signature", string(res.Signature),
		"tripped", res.Tripped,
		"completed", res.Completed,
		"edits_cleared", res.EditsCleared)
	e.exportMetrics()
	return res
}

// recordGate applies the action to one gate. A gate the action does not
// touch is left alone.
func (e *Engine) recordGate(ctx context.Context, gb gateBinding, a hook.Action, out hook.Outcome, now time.Time, failureRate float64) ([]string, bool, error) {
	ids := gb.build(e.cfg, progress.Default()).Matching(a.Tool, a.Command)
	if len(ids) == 0 {
		return nil, false, nil
	}

	var completed []string
	var satisfied, wasSatisfied bool
	_, err := state.Update(ctx, e.store, gb.section, func(st *progress.State) error {
		g := gb.build(e.cfg, *st)
		wasSatisfied = g.Evaluate().Satisfied
		for _, id := range ids {
			if !out.Success {
				g.RecordAttempt(id)
				continue
			}
			if g.Complete(id, out.Output, now, failureRate) {
				completed = append(completed, id)
			}
		}
		if reset := g.InvalidateTrivial(); len(reset) > 0 {
			e.logger.Info("trivial evidence invalidated", "gate", gb.label, "categories", reset)
		}
		*st = g.State
		satisfied = g.Evaluate().Satisfied
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if satisfied && !wasSatisfied {
		e.logger.Info("gate satisfied", "gate", gb.label)
	}
	if satisfied {
		e.clearRefusal(ctx, gb.clears)
	}
	return completed, satisfied, nil
}

// clearRefusal forgets the counter for bt once its condition holds.
func (e *Engine) clearRefusal(ctx context.Context, bt refusal.BlockType) {
	if _, ok := state.Get(e.store, sections.Refusal).Entries[bt]; !ok {
		return
	}
	_, err := state.Update(ctx, e.store, sections.Refusal, func(r *refusal.State) error {
		r.Clear(bt)
		return nil
	})
	e.warnIf(err, "refusal counter not cleared")
}

func (e *Engine) isVerifyCommand(cmd string) bool {
	if cmd == "" {
		return false
	}
	for _, pattern := range e.cfg.Edits.VerifyCommands {
		re, err := regexp.Compile(pattern)
		if err != nil {
			e.logger.Warn("invalid verify command pattern", "pattern", pattern, "error", err)
			continue
		}
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// SessionStart resets the session-scoped sections. The breaker, refusal
// tracking, pattern tallies and stats persist until an operator resets them.
func (e *Engine) SessionStart(ctx context.Context, sessionID string) error {
	var errs []error
	reset := func(err error) { errs = append(errs, err) }

	_, err := state.Reset(ctx, e.store, sections.Research)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.Startup)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.Verification)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.EditAttempts)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.Planning)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.Approvals)
	reset(err)
	_, err = state.Reset(ctx, e.store, sections.History)
	reset(err)

	joined := errors.Join(errs...)
	e.logger.Info("session started", "session_id", sessionID, "error", joined)
	return joined
}

func (e *Engine) warnIf(err error, msg string) {
	if err != nil {
		e.logger.Warn(msg, "error", err)
	}
}
