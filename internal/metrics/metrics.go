// Package metrics exports gatekeeper state as a Prometheus textfile for the
// node_exporter textfile collector.
//
// Every invocation is a short-lived process, so nothing accumulates in
// memory: a fresh registry is filled from the persisted sections and
// written atomically.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
)

const namespace = "gatekeeper"

// Gate is one progress gate's state with its required categories.
type Gate struct {
	Name     string
	Required []string
	State    progress.State
}

// Snapshot is the state exported in one write.
type Snapshot struct {
	Breaker  breaker.State
	Refusal  refusal.State
	Edits    limiter.State
	Planning limiter.Planning
	Patterns sections.PatternState
	Stats    sections.StatsState
	Gates    []Gate
}

// Registry builds a registry holding the current values of snap.
func Registry(snap Snapshot) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	breakerTripped := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "breaker",
		Name:      "tripped",
		Help:      "1 while the circuit breaker is tripped",
	})
	breakerFailures := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "breaker",
		Name:      "consecutive_failures",
		Help:      "Current consecutive failure count",
	})
	signatures := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "breaker",
		Name:      "error_signatures",
		Help:      "Failures per normalized error signature",
	}, []string{"signature"})

	halted := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "refusal",
		Name:      "halted",
		Help:      "1 while the pipeline is halted pending gk unblock",
	})
	refusals := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "refusal",
		Name:      "repeats",
		Help:      "Consecutive blocks per block type",
	}, []string{"block_type"})

	editAttempts := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "edits",
		Name:      "attempts",
		Help:      "Edits since the last passing verification",
	})
	replans := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edits",
		Name:      "replans_total",
		Help:      "Forced replans",
	})
	planApproved := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "approved",
		Help:      "1 while an operator-approved plan is in effect",
	})

	categories := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "categories",
		Help:      "Required categories per gate and status",
	}, []string{"gate", "status"})

	gaming := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gaming",
		Name:      "detections_total",
		Help:      "Gaming heuristics that fired, by pattern",
	}, []string{"pattern"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Pipeline decisions by verdict",
	}, []string{"verdict"})
	byGuard := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Non-allow decisions by deciding guard",
	}, []string{"guard"})
	lastDecision := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_decision_timestamp_seconds",
		Help:      "Unix time of the last decision",
	})

	reg.MustRegister(breakerTripped, breakerFailures, signatures, halted, refusals,
		editAttempts, replans, planApproved, categories, gaming, decisions, byGuard, lastDecision)

	breakerTripped.Set(boolValue(snap.Breaker.Tripped))
	breakerFailures.Set(float64(snap.Breaker.FailureCount))
	for sig, n := range snap.Breaker.ErrorSignatures {
		signatures.WithLabelValues(sig).Set(float64(n))
	}

	halted.Set(boolValue(snap.Refusal.Halted))
	for bt, e := range snap.Refusal.Entries {
		refusals.WithLabelValues(string(bt)).Set(float64(e.Count))
	}

	editAttempts.Set(float64(snap.Edits.Count))
	replans.Add(float64(snap.Planning.ReplanCount))
	planApproved.Set(boolValue(snap.Planning.PlanApproved))

	for _, g := range snap.Gates {
		var pending, completed, skipped int
		for _, id := range g.Required {
			cs := g.State.Categories[id]
			switch {
			case cs.Skipped:
				skipped++
			case cs.CompletedAt != nil:
				completed++
			default:
				pending++
			}
		}
		categories.WithLabelValues(g.Name, "pending").Set(float64(pending))
		categories.WithLabelValues(g.Name, "completed").Set(float64(completed))
		categories.WithLabelValues(g.Name, "skipped").Set(float64(skipped))
	}

	for pattern, n := range snap.Patterns.Counts {
		gaming.WithLabelValues(pattern).Add(float64(n))
	}

	decisions.WithLabelValues("allow").Add(float64(snap.Stats.Allow))
	decisions.WithLabelValues("warn").Add(float64(snap.Stats.Warn))
	decisions.WithLabelValues("block").Add(float64(snap.Stats.Block))
	for guard, n := range snap.Stats.ByGuard {
		byGuard.WithLabelValues(guard).Add(float64(n))
	}
	if snap.Stats.LastDecisionAt != nil {
		lastDecision.Set(float64(snap.Stats.LastDecisionAt.Unix()))
	}

	return reg
}

// WriteTextfile writes snap to path in the Prometheus text format.
func WriteTextfile(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry(snap)); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
