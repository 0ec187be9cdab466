package pipeline

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/refusal"
)

// Patterns evaluates the configured domain rules in order. The first rule
// that matches decides.
func Patterns() Guard {
	return Func{
		GuardName:     "pattern",
		GuardStage:    StageDomain,
		GuardSeverity: SeverityLow,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			for _, rule := range snap.Config.Rules {
				if len(rule.Kinds) > 0 && !slices.Contains(rule.Kinds, string(a.Kind)) {
					continue
				}
				re, err := regexp.Compile(rule.Match)
				if err != nil {
					return Decision{}, fmt.Errorf("%w %s: %v", ErrInvalidRule, rule.Name, err)
				}
				value := ruleField(rule, a)
				if value == "" || !re.MatchString(value) {
					continue
				}
				return ruleDecision(rule), nil
			}
			return Allow(), nil
		},
	}
}

func ruleField(rule config.Rule, a hook.Action) string {
	switch rule.Field {
	case "command":
		return a.Command
	case "target":
		return a.Target
	case "text":
		return a.Text
	case "url":
		return a.URL
	default:
		return a.Subject()
	}
}

func ruleDecision(rule config.Rule) Decision {
	reason := fmt.Sprintf("%s: %s", rule.Name, rule.Reason)
	fix := rule.Fix
	if fix == "" {
		fix = "change the action so it no longer matches rule " + rule.Name
	}
	if rule.Verdict == "warn" {
		return Warn(reason, fix)
	}
	return Block(refusal.PatternRule, reason, fix)
}
