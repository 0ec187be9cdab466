package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// gateSpec binds a progress gate section to the guard that enforces it.
type gateSpec struct {
	guard     string
	label     string
	stage     Stage
	section   state.Section[progress.State]
	blockType refusal.BlockType
}

var (
	startupSpec = gateSpec{
		guard:     "startup_gate",
		label:     "startup",
		stage:     StageReadiness,
		section:   sections.Startup,
		blockType: refusal.StartupIncomplete,
	}
	verificationSpec = gateSpec{
		guard:     "verification_gate",
		label:     "tool verification",
		stage:     StageReadiness,
		section:   sections.Verification,
		blockType: refusal.VerificationIncomplete,
	}
	researchSpec = gateSpec{
		guard:     "research_gate",
		label:     "research",
		stage:     StageProgress,
		section:   sections.Research,
		blockType: refusal.ResearchIncomplete,
	}
)

// StartupGate blocks edits until the session's startup steps are done.
func StartupGate() Guard { return progressGuard(startupSpec) }

// VerificationGate blocks edits until the configured tools were verified.
func VerificationGate() Guard { return progressGuard(verificationSpec) }

// ResearchGate blocks edits until every research category holds evidence.
func ResearchGate() Guard { return progressGuard(researchSpec) }

func progressGuard(gs gateSpec) Guard {
	return Func{
		GuardName:     gs.guard,
		GuardStage:    gs.stage,
		GuardSeverity: SeverityLow,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			if a.Kind != hook.KindEdit {
				return Allow(), nil
			}
			g, gc := snap.Gate(gs.section.Name)
			if !gc.Enabled() {
				return Allow(), nil
			}
			r := g.Evaluate()
			switch {
			case r.Satisfied:
				return Allow(), nil
			case len(r.Missing) > 0:
				return missingBlock(gs, g, r), nil
			default:
				return gamingBlock(gs, r, snap), nil
			}
		},
	}
}

func missingBlock(gs gateSpec, g *progress.Gate, r progress.Result) Decision {
	d := Block(gs.blockType,
		fmt.Sprintf("%s incomplete: missing %s", gs.label, strings.Join(r.Missing, ", ")),
		fmt.Sprintf("complete the missing %s categories (%s) with real, non-empty results, then retry the edit", gs.label, strings.Join(r.Missing, ", ")))

	trivial := make(map[string]bool, len(r.Trivial))
	for _, id := range r.Trivial {
		trivial[id] = true
	}
	for _, def := range g.Defs {
		if !contains(r.Missing, def.ID) {
			continue
		}
		line := def.ID + ": " + howToComplete(def)
		if trivial[def.ID] {
			line += " (previous result was empty or too short)"
		}
		d = d.WithDetails(line)
	}
	return d
}

func howToComplete(def progress.Definition) string {
	var ways []string
	if len(def.Tools) > 0 {
		ways = append(ways, "use "+strings.Join(def.Tools, " or "))
	}
	if def.CommandPattern != "" {
		ways = append(ways, "run a command matching "+def.CommandPattern)
	}
	if len(ways) == 0 {
		return "ask the operator to run `gk skip` after an attempt"
	}
	return strings.Join(ways, ", or ")
}

// gamingBlock is a hard block. The gate is reset so its categories have to
// be completed again, and every pattern is tallied.
func gamingBlock(gs gateSpec, r progress.Result, snap *Snapshot) Decision {
	names := make([]string, 0, len(r.Gaming))
	details := make([]string, 0, len(r.Gaming))
	for _, f := range r.Gaming {
		names = append(names, string(f.Pattern))
		details = append(details, string(f.Pattern)+": "+f.Detail)
	}
	now := snap.Now
	section := gs.section
	return Block(refusal.GamingDetected,
		fmt.Sprintf("%s gate gamed: %s", gs.label, strings.Join(names, ", ")),
		fmt.Sprintf("the %s categories were reset; redo each one with a real query and read its results before moving on", gs.label),
		Effect{
			Name: "observe_gaming",
			Apply: func(ctx context.Context, s *state.Store) error {
				_, err := state.Update(ctx, s, sections.Patterns, func(p *sections.PatternState) error {
					for _, n := range names {
						p.Observe(n, now)
					}
					return nil
				})
				return err
			},
		},
		Effect{
			Name: "reset_" + section.Name,
			Apply: func(ctx context.Context, s *state.Store) error {
				_, err := state.Reset(ctx, s, section)
				return err
			},
		},
	).WithDetails(details...)
}

// PlanRequired blocks edits until an operator approved a plan.
func PlanRequired() Guard {
	return Func{
		GuardName:     "plan_required",
		GuardStage:    StageProgress,
		GuardSeverity: SeverityLow,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			if !snap.Config.Plan.Required || a.Kind != hook.KindEdit || snap.Planning.PlanApproved {
				return Allow(), nil
			}
			d := Block(refusal.PlanRequired,
				"no approved plan",
				"write up the plan and present it to the operator; edits resume after they run `gk approve-plan`")
			if snap.Planning.ReplanCount > 0 {
				d = d.WithDetails(fmt.Sprintf("replans so far: %d", snap.Planning.ReplanCount))
			}
			return d, nil
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
