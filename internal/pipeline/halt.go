package pipeline

import (
	"fmt"

	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/refusal"
)

// RefusalHalt blocks every action while the escalator is halted.
func RefusalHalt() Guard {
	return Func{
		GuardName:     "refusal_halt",
		GuardStage:    StageHalt,
		GuardSeverity: SeverityHigh,
		Fn: func(snap *Snapshot, _ hook.Action) (Decision, error) {
			r := snap.Refusal
			if !r.Halted {
				return Allow(), nil
			}
			count := r.Entries[r.HaltedType].Count
			return Block(refusal.RefusalHalt,
				fmt.Sprintf("halted: %s was blocked %d times and the action kept being retried", r.HaltedType, count),
				"stop and report to the operator; every action stays blocked until they run `gk unblock`"), nil
		},
	}
}

// CircuitBreaker blocks every non-bootstrap action while the breaker is
// tripped. Read-only actions pass so the failure can be diagnosed.
func CircuitBreaker() Guard {
	return Func{
		GuardName:     "circuit_breaker",
		GuardStage:    StageHalt,
		GuardSeverity: SeverityHigh,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			b := snap.Breaker
			if !b.Tripped || a.IsBootstrap() {
				return Allow(), nil
			}
			d := Block(refusal.BreakerTripped,
				fmt.Sprintf("circuit breaker tripped: %s", b.TripReason),
				"stop retrying and report the failure; read-only tools still work for diagnosis, and the operator runs `gk reset breaker` once the cause is fixed")
			return d.WithDetails(fmt.Sprintf("failures: %d, last error: %s", b.FailureCount, b.LastError)), nil
		},
	}
}
