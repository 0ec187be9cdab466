package engine

import (
	"context"
	"time"

	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/pipeline"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// Decision is the outcome of one pre-action check.
type Decision struct {
	pipeline.Result

	// Severity is the escalation level of an escalating block, zero otherwise.
	Severity refusal.Severity
	// Repeats is how many times this block type has now been issued.
	Repeats int
	// Diagnostic is the text for the diagnostic channel.
	Diagnostic string
}

// Check runs the pipeline on a, settles the surviving effects, escalates
// a repeated block and records the decision. It always returns a decision;
// state failures are logged.
func (e *Engine) Check(ctx context.Context, a hook.Action) Decision {
	now := e.now()
	res := e.pipeline.Evaluate(pipeline.Capture(e.store, e.cfg, now), a)
	res, err := pipeline.Settle(ctx, e.store, res, e.logger)
	if err != nil {
		e.logger.Warn("effects not committed", "guard", res.Decision.Guard, "error", err)
	}

	d := Decision{Result: res}
	var note string
	if bt := res.Decision.BlockType; res.Decision.Blocked() && bt.Escalates() {
		d.Severity, d.Repeats = e.escalate(ctx, bt, a.Tool, now)
		note = refusal.Annotation(bt, d.Severity, d.Repeats)
	}
	d.Diagnostic = pipeline.Diagnostic(res, note)

	e.countDecision(ctx, res.Decision, now)
	e.logger.Info("decision",
		"tool", a.Tool,
		"kind", string(a.Kind),
		"subject", a.Subject(),
		"verdict", res.Decision.Verdict.String(),
		"guard", res.Decision.Guard,
		"block_type", string(res.Decision.BlockType),
		"severity", d.Severity.String(),
		"reason", res.Decision.Reason,
		"warnings", len(res.Warnings),
		"effects", len(res.Effects))
	e.exportMetrics()
	return d
}

func (e *Engine) escalate(ctx context.Context, bt refusal.BlockType, tool string, now time.Time) (refusal.Severity, int) {
	var sev refusal.Severity
	r, err := state.Update(ctx, e.store, sections.Refusal, func(r *refusal.State) error {
		sev = r.Escalate(bt, tool, now, e.cfg.Refusal.HaltAfter)
		return nil
	})
	if err != nil {
		e.logger.Warn("refusal escalation not persisted", "block_type", string(bt), "error", err)
		if sev == 0 {
			sev = refusal.Informational
		}
	}
	if sev == refusal.Halt {
		e.logger.Warn("pipeline halted", "block_type", string(bt), "count", r.Entries[bt].Count)
	}
	return sev, r.Entries[bt].Count
}

func (e *Engine) countDecision(ctx context.Context, d pipeline.Decision, now time.Time) {
	_, err := state.Update(ctx, e.store, sections.Stats, func(s *sections.StatsState) error {
		switch d.Verdict {
		case pipeline.VerdictBlock:
			s.Block++
		case pipeline.VerdictWarn:
			s.Warn++
		default:
			s.Allow++
		}
		if d.Guard != "" {
			if s.ByGuard == nil {
				s.ByGuard = map[string]int{}
			}
			s.ByGuard[d.Guard]++
		}
		t := now.UTC()
		s.LastDecisionAt = &t
		return nil
	})
	if err != nil {
		e.logger.Warn("stats not persisted", "error", err)
	}
}
