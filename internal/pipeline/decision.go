package pipeline

import (
	"context"

	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/state"
)

// Verdict is the tri-state outcome of a guard or of the whole pipeline.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictWarn
	VerdictBlock
)

func (v Verdict) String() string {
	switch v {
	case VerdictWarn:
		return "WARN"
	case VerdictBlock:
		return "BLOCK"
	default:
		return "ALLOW"
	}
}

// Effect is a deferred state mutation. Guards return effects instead of
// writing state; the caller commits them after the pipeline decides.
//
// An effect with OnLost set is a claim: Apply re-checks its precondition
// under the section lock and returns ErrClaimLost when a concurrent
// invocation got there first. The decision then becomes OnLost().
type Effect struct {
	Name   string
	Apply  func(ctx context.Context, s *state.Store) error
	OnLost func() Decision

	guard string
}

// Decision is what one guard, or the pipeline as a whole, decided.
type Decision struct {
	Verdict   Verdict
	Guard     string
	BlockType refusal.BlockType
	Reason    string
	Fix       string
	// Details are extra diagnostic lines (missing categories, findings).
	Details []string
	Effects []Effect
}

// Allow passes with optional effects.
func Allow(effects ...Effect) Decision {
	return Decision{Verdict: VerdictAllow, Effects: effects}
}

// Warn passes with a diagnostic.
func Warn(reason, fix string, effects ...Effect) Decision {
	return Decision{Verdict: VerdictWarn, Reason: reason, Fix: fix, Effects: effects}
}

// Block stops the pipeline. Every block must carry a fix.
func Block(bt refusal.BlockType, reason, fix string, effects ...Effect) Decision {
	return Decision{Verdict: VerdictBlock, BlockType: bt, Reason: reason, Fix: fix, Effects: effects}
}

// WithDetails returns d with detail lines appended.
func (d Decision) WithDetails(lines ...string) Decision {
	d.Details = append(append([]string(nil), d.Details...), lines...)
	return d
}

// Blocked reports whether the verdict is Block.
func (d Decision) Blocked() bool {
	return d.Verdict == VerdictBlock
}
