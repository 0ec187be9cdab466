package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/boshu2/gatekeeper/internal/approval"
	"github.com/boshu2/gatekeeper/internal/audit"
	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// Override identifies the operator behind an override and why.
type Override struct {
	Operator string
	Reason   string
}

// ResetTargets are the targets Reset accepts.
var ResetTargets = []string{"breaker", "research", "startup", "verification", "refusal", "edits", "approvals", "plan", "all"}

// Reset returns target to its default state and appends the reset, with
// the state it replaced, to the audit ledger.
func (e *Engine) Reset(ctx context.Context, target string, o Override) (audit.Record, error) {
	if o.Operator == "" {
		return audit.Record{}, ErrNoOperator
	}
	if !slices.Contains(ResetTargets, target) {
		return audit.Record{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownTarget, target, strings.Join(ResetTargets, ", "))
	}

	targets := []string{target}
	if target == "all" {
		targets = ResetTargets[:len(ResetTargets)-1]
	}

	var priors []string
	details := map[string]any{}
	for _, t := range targets {
		prior, err := e.resetOne(ctx, t, o)
		if err != nil {
			return audit.Record{}, fmt.Errorf("reset %s: %w", t, err)
		}
		details[t] = prior
		if len(targets) > 1 {
			prior = t + ": " + prior
		}
		priors = append(priors, prior)
	}

	return e.audit(ctx, audit.Entry{
		Action:      "reset",
		Target:      target,
		Operator:    o.Operator,
		Reason:      o.Reason,
		PriorReason: strings.Join(priors, "; "),
		Details:     details,
	})
}

// resetOne resets a single target and describes what it replaced.
func (e *Engine) resetOne(ctx context.Context, target string, o Override) (string, error) {
	now := e.now()
	var prior string
	var err error

	switch target {
	case "breaker":
		_, err = state.Update(ctx, e.store, sections.Breaker, func(b *breaker.State) error {
			status := b.Status()
			rec := b.Reset(o.Operator, o.Reason, now)
			prior = fmt.Sprintf("%s, %d consecutive failures", status, rec.PriorFailures)
			if rec.PriorReason != "" {
				prior += ": " + rec.PriorReason
			}
			return nil
		})
	case "research", "startup", "verification":
		gb, _ := e.gate(target)
		_, err = state.Update(ctx, e.store, gb.section, func(st *progress.State) error {
			prior = describeGate(gb.build(e.cfg, *st).Evaluate())
			*st = progress.Default()
			return nil
		})
	case "refusal":
		_, err = state.Update(ctx, e.store, sections.Refusal, func(r *refusal.State) error {
			prior = describeRefusal(*r)
			r.Unblock()
			return nil
		})
	case "edits":
		_, err = state.Update(ctx, e.store, sections.EditAttempts, func(s *limiter.State) error {
			prior = fmt.Sprintf("%d edits", s.Count)
			s.Clear()
			return nil
		})
	case "approvals":
		_, err = state.Update(ctx, e.store, sections.Approvals, func(s *approval.State) error {
			prior = "pending: " + joinOrNone(sortedKeys(s.Pending))
			*s = approval.Default()
			return nil
		})
	case "plan":
		_, err = state.Update(ctx, e.store, sections.Planning, func(p *limiter.Planning) error {
			prior = describePlan(*p)
			*p = limiter.DefaultPlanning()
			return nil
		})
	}
	if err != nil {
		return "", err
	}
	e.logger.Info("override", "action", "reset", "target", target, "operator", o.Operator, "prior", prior)
	return prior, nil
}

// Unblock lifts a refusal halt and clears every refusal counter.
func (e *Engine) Unblock(ctx context.Context, o Override) (audit.Record, error) {
	if o.Operator == "" {
		return audit.Record{}, ErrNoOperator
	}
	var prior string
	var halted bool
	_, err := state.Update(ctx, e.store, sections.Refusal, func(r *refusal.State) error {
		prior = describeRefusal(*r)
		halted = r.Halted
		r.Unblock()
		return nil
	})
	if err != nil {
		return audit.Record{}, fmt.Errorf("unblock: %w", err)
	}
	e.logger.Info("override", "action", "unblock", "operator", o.Operator, "prior", prior)
	return e.audit(ctx, audit.Entry{
		Action:      "unblock",
		Operator:    o.Operator,
		Reason:      o.Reason,
		PriorReason: prior,
		Details:     map[string]any{"was_halted": halted},
	})
}

// Skip marks a gate category skipped. The category must have been
// attempted at least once.
func (e *Engine) Skip(ctx context.Context, gateName, category string, o Override) (audit.Record, error) {
	if o.Operator == "" {
		return audit.Record{}, ErrNoOperator
	}
	gb, ok := e.gate(gateName)
	if !ok {
		return audit.Record{}, fmt.Errorf("%w: %q", ErrUnknownGate, gateName)
	}

	var attempts int
	var satisfied bool
	_, err := state.Update(ctx, e.store, gb.section, func(st *progress.State) error {
		g := gb.build(e.cfg, *st)
		attempts = st.Categories[category].Attempts
		if err := g.Skip(category, o.Operator); err != nil {
			return err
		}
		*st = g.State
		satisfied = g.Evaluate().Satisfied
		return nil
	})
	if err != nil {
		return audit.Record{}, fmt.Errorf("skip %s/%s: %w", gb.label, category, err)
	}
	if satisfied {
		e.clearRefusal(ctx, gb.clears)
	}
	e.logger.Info("override", "action", "skip", "gate", gb.label, "category", category, "operator", o.Operator)
	return e.audit(ctx, audit.Entry{
		Action:      "skip",
		Target:      gb.label + "/" + category,
		Operator:    o.Operator,
		Reason:      o.Reason,
		PriorReason: fmt.Sprintf("%d attempts without qualifying evidence", attempts),
		Details:     map[string]any{"attempts": attempts, "gate_satisfied": satisfied},
	})
}

// ApprovePlan records operator approval of the current plan.
func (e *Engine) ApprovePlan(ctx context.Context, o Override) (audit.Record, error) {
	if o.Operator == "" {
		return audit.Record{}, ErrNoOperator
	}
	now := e.now()
	var prior string
	var replans int
	_, err := state.Update(ctx, e.store, sections.Planning, func(p *limiter.Planning) error {
		prior = describePlan(*p)
		replans = p.ReplanCount
		p.Approve(o.Operator, now)
		return nil
	})
	if err != nil {
		return audit.Record{}, fmt.Errorf("approve plan: %w", err)
	}
	e.logger.Info("override", "action", "approve_plan", "operator", o.Operator)
	return e.audit(ctx, audit.Entry{
		Action:      "approve_plan",
		Operator:    o.Operator,
		Reason:      o.Reason,
		PriorReason: prior,
		Details:     map[string]any{"replan_count": replans},
	})
}

func (e *Engine) audit(ctx context.Context, entry audit.Entry) (audit.Record, error) {
	rec, err := audit.Append(ctx, e.store.Dir(), entry, e.now())
	if err != nil {
		e.logger.Error("audit append failed", "action", entry.Action, "target", entry.Target, "error", err)
		return audit.Record{}, fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}
	return rec, nil
}

func describeGate(r progress.Result) string {
	switch {
	case r.Satisfied:
		return "satisfied"
	case len(r.Missing) > 0:
		return "missing " + strings.Join(r.Missing, ", ")
	default:
		var patterns []string
		for _, f := range r.Gaming {
			patterns = append(patterns, string(f.Pattern))
		}
		return "gaming detected: " + strings.Join(patterns, ", ")
	}
}

func describeRefusal(r refusal.State) string {
	var parts []string
	if r.Halted {
		parts = append(parts, fmt.Sprintf("halted on %s", r.HaltedType))
	}
	types := make([]string, 0, len(r.Entries))
	for bt := range r.Entries {
		types = append(types, string(bt))
	}
	sort.Strings(types)
	for _, bt := range types {
		parts = append(parts, fmt.Sprintf("%s x%d", bt, r.Entries[refusal.BlockType(bt)].Count))
	}
	return joinOrNone(parts)
}

func describePlan(p limiter.Planning) string {
	status := "not approved"
	if p.PlanApproved {
		status = "approved by " + p.ApprovedBy
	}
	return fmt.Sprintf("%s, %d replans", status, p.ReplanCount)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrNone(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
