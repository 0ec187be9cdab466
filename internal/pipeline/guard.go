package pipeline

import "github.com/boshu2/gatekeeper/internal/hook"

// Stage orders guards. Lower stages always run first.
type Stage int

const (
	StageSafety Stage = iota
	StageHalt
	StageReadiness
	StageProgress
	StageLimit
	StageDomain
)

func (s Stage) String() string {
	switch s {
	case StageSafety:
		return "safety"
	case StageHalt:
		return "halt"
	case StageReadiness:
		return "readiness"
	case StageProgress:
		return "progress"
	case StageLimit:
		return "limit"
	case StageDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Severity selects what a failing guard degrades to.
type Severity int

const (
	// SeverityLow guards fail open.
	SeverityLow Severity = iota
	// SeverityHigh guards fail closed.
	SeverityHigh
)

// errorPolicy is the single table mapping a guard's severity to the verdict
// used when the guard returns an error or panics.
var errorPolicy = map[Severity]Verdict{
	SeverityLow:  VerdictAllow,
	SeverityHigh: VerdictBlock,
}

// Guard evaluates one policy against a snapshot. Check must not mutate
// state; mutations travel back as Decision.Effects.
type Guard interface {
	Name() string
	Stage() Stage
	Severity() Severity
	Check(snap *Snapshot, a hook.Action) (Decision, error)
}

// Func adapts a plain function into a Guard.
type Func struct {
	GuardName     string
	GuardStage    Stage
	GuardSeverity Severity
	Fn            func(snap *Snapshot, a hook.Action) (Decision, error)
}

func (f Func) Name() string       { return f.GuardName }
func (f Func) Stage() Stage       { return f.GuardStage }
func (f Func) Severity() Severity { return f.GuardSeverity }

func (f Func) Check(snap *Snapshot, a hook.Action) (Decision, error) {
	return f.Fn(snap, a)
}
