package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/state"
)

// fallbackFix is used when a blocking guard forgot to name a fix.
const fallbackFix = "run `gk status` to see which requirement is unmet, satisfy it, then retry"

// Pipeline is an ordered set of guards.
type Pipeline struct {
	guards []Guard
	logger *slog.Logger
}

// New sorts guards by stage, keeping registration order within a stage.
func New(logger *slog.Logger, guards ...Guard) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sorted := append([]Guard(nil), guards...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stage() < sorted[j].Stage()
	})
	return &Pipeline{guards: sorted, logger: logger}
}

// Guards returns the guards in evaluation order.
func (p *Pipeline) Guards() []Guard {
	return append([]Guard(nil), p.guards...)
}

// Result is the pipeline's final decision plus the effects to commit.
type Result struct {
	Decision Decision
	// Warnings are every Warn decision in evaluation order.
	Warnings []Decision
	// Effects are the effects that survived the final verdict.
	Effects []Effect
	// Evaluated names the guards that ran.
	Evaluated []string
}

// ExitCode maps the final verdict onto the hook exit channel.
func (r Result) ExitCode() int {
	switch r.Decision.Verdict {
	case VerdictBlock:
		return hook.ExitBlock
	case VerdictWarn:
		return hook.ExitWarn
	default:
		return hook.ExitAllow
	}
}

// Evaluate runs guards in order and stops at the first Block. The blocking
// guard's effects always survive; effects of guards that passed survive
// only when nothing blocks.
func (p *Pipeline) Evaluate(snap *Snapshot, a hook.Action) Result {
	var res Result
	var pending []Effect

	for _, g := range p.guards {
		res.Evaluated = append(res.Evaluated, g.Name())

		d, err := p.check(g, snap, a)
		if err != nil {
			verdict := errorPolicy[g.Severity()]
			p.logger.Warn("guard failed",
				"guard", g.Name(),
				"stage", g.Stage().String(),
				"degraded_to", verdict.String(),
				"error", err)
			if verdict != VerdictBlock {
				continue
			}
			d = Block(refusal.GuardFailure,
				fmt.Sprintf("guard %s failed closed: %v", g.Name(), err),
				"the operator should inspect the gatekeeper log and state with `gk status`; the action stays blocked until the guard can evaluate")
		}
		d.Guard = g.Name()
		d.Effects = append([]Effect(nil), d.Effects...)
		for i := range d.Effects {
			d.Effects[i].guard = g.Name()
		}

		switch d.Verdict {
		case VerdictBlock:
			if d.Fix == "" {
				d.Fix = fallbackFix
			}
			res.Decision = d
			res.Effects = d.Effects
			return res
		case VerdictWarn:
			res.Warnings = append(res.Warnings, d)
		}
		pending = append(pending, d.Effects...)
	}

	if len(res.Warnings) > 0 {
		res.Decision = res.Warnings[0]
		res.Decision.Effects = nil
	} else {
		res.Decision = Allow()
	}
	res.Effects = pending
	return res
}

// check calls g and turns a panic into an error.
func (p *Pipeline) check(g Guard, snap *Snapshot, a hook.Action) (d Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrGuardPanic, r)
		}
	}()
	return g.Check(snap, a)
}

// Settle commits res and returns the decision that actually holds. Claims
// run first; when one is lost the result turns into the claim's fallback
// decision, only that decision's effects are committed, and the remaining
// effects are dropped. A claim that fails for any other reason is logged
// and the decision stands.
func Settle(ctx context.Context, s *state.Store, res Result, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var claims, rest []Effect
	for _, e := range res.Effects {
		if e.OnLost != nil && e.Apply != nil {
			claims = append(claims, e)
		} else {
			rest = append(rest, e)
		}
	}

	var errs []error
	for _, c := range claims {
		err := c.Apply(ctx, s)
		switch {
		case errors.Is(err, ErrClaimLost):
			d := c.OnLost()
			d.Guard = c.guard
			if d.Verdict == VerdictBlock && d.Fix == "" {
				d.Fix = fallbackFix
			}
			logger.Warn("claim lost", "effect", c.Name, "guard", c.guard, "verdict", d.Verdict.String())
			lost := Result{Decision: d, Effects: d.Effects, Evaluated: res.Evaluated}
			if d.Verdict == VerdictWarn {
				lost.Warnings = []Decision{d}
			}
			errs = append(errs, Commit(ctx, s, d.Effects, logger))
			return lost, errors.Join(errs...)
		case err != nil:
			logger.Error("claim failed", "effect", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	errs = append(errs, Commit(ctx, s, rest, logger))
	return res, errors.Join(errs...)
}

// Commit applies effects in order. A failing effect is logged and the rest
// still run; the joined error is returned.
func Commit(ctx context.Context, s *state.Store, effects []Effect, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var errs []error
	for _, e := range effects {
		if e.Apply == nil {
			continue
		}
		if err := e.Apply(ctx, s); err != nil {
			logger.Error("effect failed", "effect", e.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}
