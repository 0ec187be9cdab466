package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boshu2/gatekeeper/internal/approval"
	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// SensitiveTarget blocks the first edit of a sensitive target and allows
// the retry on the same target once. The token is spent under the
// approvals lock, so two overlapping retries cannot both pass.
func SensitiveTarget() Guard {
	return Func{
		GuardName:     "sensitive_target",
		GuardStage:    StageLimit,
		GuardSeverity: SeverityHigh,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			if a.Kind != hook.KindEdit {
				return Allow(), nil
			}
			m := approval.Matcher{Patterns: snap.Config.Sensitive.Targets}
			id, ok := m.TargetID(a.Target)
			if !ok {
				return Allow(), nil
			}
			now := snap.Now
			if snap.Approvals.Has(id) {
				return Allow(consumeClaim(id, now), clearRefusalEffect(refusal.SensitiveTarget)), nil
			}
			return firstTouchBlock(id, now), nil
		},
	}
}

func firstTouchBlock(id string, now time.Time) Decision {
	return Block(refusal.SensitiveTarget,
		fmt.Sprintf("%s is a sensitive target and needs an explicit first-touch confirmation", id),
		"double-check that this change is intended, then retry the same edit once; the retry is allowed",
		Effect{
			Name: "grant_approval",
			Apply: func(ctx context.Context, s *state.Store) error {
				_, err := state.Update(ctx, s, sections.Approvals, func(st *approval.State) error {
					st.Grant(id, now)
					return nil
				})
				return err
			},
		})
}

// consumeClaim spends the token for id. When another invocation spent it
// first, the edit is treated as a first touch again.
func consumeClaim(id string, now time.Time) Effect {
	return Effect{
		Name: "consume_approval",
		Apply: func(ctx context.Context, s *state.Store) error {
			_, err := state.Update(ctx, s, sections.Approvals, func(st *approval.State) error {
				if !st.Consume(id, now) {
					return ErrClaimLost
				}
				return nil
			})
			return err
		},
		OnLost: func() Decision { return firstTouchBlock(id, now) },
	}
}

func clearRefusalEffect(bt refusal.BlockType) Effect {
	return Effect{
		Name: "clear_refusal_" + string(bt),
		Apply: func(ctx context.Context, s *state.Store) error {
			_, err := state.Update(ctx, s, sections.Refusal, func(st *refusal.State) error {
				st.Clear(bt)
				return nil
			})
			return err
		},
	}
}

// EditAttempts counts consecutive gated edits. The edit that reaches the
// limit is blocked and forces a replan. The count is re-checked under the
// edit_attempts lock before it is incremented.
func EditAttempts() Guard {
	return Func{
		GuardName:     "edit_attempts",
		GuardStage:    StageLimit,
		GuardSeverity: SeverityLow,
		Fn: func(snap *Snapshot, a hook.Action) (Decision, error) {
			if a.Kind != hook.KindEdit {
				return Allow(), nil
			}
			edits := snap.Edits
			limit := edits.Limit(snap.Config.Edits.MaxAttempts)
			now := snap.Now

			switch edits.Next(limit) {
			case limiter.OutcomeReplan:
				return replanBlock(edits.Count+1, limit, now), nil
			case limiter.OutcomeWarn:
				return Warn(
					fmt.Sprintf("one edit left before a forced replan (%d of %d)", edits.Count+1, limit),
					"run the tests now and make sure this edit is the right one",
					incrementClaim(a.Target, now, limit)), nil
			default:
				return Allow(incrementClaim(a.Target, now, limit)), nil
			}
		},
	}
}

func replanBlock(attempt, limit int, now time.Time) Decision {
	return Block(refusal.EditLimit,
		fmt.Sprintf("edit %d of %d without a passing verification: the approach is not working", attempt, limit),
		"stop editing; research the problem again, write a new plan, and get it approved before the next edit",
		ReplanEffect(now)).WithDetails(
		"research progress was reset to pending",
		"plan approval was revoked",
	)
}

// incrementClaim counts the edit unless concurrent edits already brought
// the counter to the limit, in which case this edit forces the replan.
func incrementClaim(target string, now time.Time, limit int) Effect {
	attempt := 0
	return Effect{
		Name: "count_edit",
		Apply: func(ctx context.Context, s *state.Store) error {
			_, err := state.Update(ctx, s, sections.EditAttempts, func(st *limiter.State) error {
				attempt = st.Count + 1
				if st.Next(limit) == limiter.OutcomeReplan {
					return ErrClaimLost
				}
				st.Increment(target, now, limit)
				return nil
			})
			return err
		},
		OnLost: func() Decision { return replanBlock(attempt, limit, now) },
	}
}

// ReplanEffect resets research progress, revokes plan approval, counts the
// replan and clears the edit counter.
func ReplanEffect(now time.Time) Effect {
	return Effect{
		Name: "replan",
		Apply: func(ctx context.Context, s *state.Store) error {
			_, errResearch := state.Reset(ctx, s, sections.Research)
			_, errPlan := state.Update(ctx, s, sections.Planning, func(p *limiter.Planning) error {
				p.Replan(now)
				return nil
			})
			_, errEdits := state.Update(ctx, s, sections.EditAttempts, func(st *limiter.State) error {
				st.Clear()
				return nil
			})
			return errors.Join(errResearch, errPlan, errEdits)
		},
	}
}
