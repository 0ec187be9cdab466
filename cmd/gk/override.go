package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/audit"
	"github.com/boshu2/gatekeeper/internal/engine"
)

// operatorEnv must be "1" for --operator to count outside a terminal.
const operatorEnv = "GATEKEEPER_OPERATOR"

var errNotOperator = errors.New("operator commands need an interactive terminal, or --operator with " + operatorEnv + "=1")

var (
	overrideReason   string
	overrideOperator bool
)

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// requireOperator rejects overrides that do not come from a person at a
// terminal or an explicitly flagged operator script.
func requireOperator() error {
	if stdinIsTerminal() {
		return nil
	}
	if overrideOperator && os.Getenv(operatorEnv) == "1" {
		return nil
	}
	return errNotOperator
}

var resetCmd = &cobra.Command{
	Use:   "reset <" + strings.Join(engine.ResetTargets, "|") + ">",
	Short: "Reset the breaker, a gate, or other state",
	Long: `Reset one piece of gatekeeper state to its default and append the reset,
with the state it replaced, to the audit ledger.

Targets:
  breaker        Close the circuit breaker
  research       Clear research progress
  startup        Clear startup progress
  verification   Clear tool verification progress
  refusal        Clear refusal counters and any halt
  edits          Clear the edit counter
  approvals      Drop pending sensitive-target approvals
  plan           Revoke plan approval and the replan count
  all            Everything above

Examples:
  gk reset breaker --reason "flaky network fixed"
  gk reset all`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: engine.ResetTargets,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverride(cmd, func(ctx context.Context, e *engine.Engine, o engine.Override) (audit.Record, error) {
			return e.Reset(ctx, args[0], o)
		})
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock",
	Short: "Lift a refusal halt",
	Long:  `Clear every refusal counter and lift the halt that blocks all actions.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverride(cmd, func(ctx context.Context, e *engine.Engine, o engine.Override) (audit.Record, error) {
			return e.Unblock(ctx, o)
		})
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <gate> <category>",
	Short: "Skip a gate category after an attempt",
	Long: `Mark a gate category as skipped. The category must have been attempted at
least once; a category nobody tried cannot be waived.

Gates: startup, verification, research.

Examples:
  gk skip research github --reason "no GitHub access in this sandbox"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverride(cmd, func(ctx context.Context, e *engine.Engine, o engine.Override) (audit.Record, error) {
			return e.Skip(ctx, args[0], args[1], o)
		})
	},
}

var approvePlanCmd = &cobra.Command{
	Use:   "approve-plan",
	Short: "Approve the current plan",
	Long:  `Record operator approval of the agent's plan. Edits gated by plan_required resume.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverride(cmd, func(ctx context.Context, e *engine.Engine, o engine.Override) (audit.Record, error) {
			return e.ApprovePlan(ctx, o)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{resetCmd, unblockCmd, skipCmd, approvePlanCmd} {
		c.Flags().StringVar(&overrideReason, "reason", "", "Why the override is needed (stored in the audit ledger)")
		c.Flags().BoolVar(&overrideOperator, "operator", false, "Confirm operator intent without a terminal (requires "+operatorEnv+"=1)")
		rootCmd.AddCommand(c)
	}
}

type overrideFunc func(context.Context, *engine.Engine, engine.Override) (audit.Record, error)

func runOverride(cmd *cobra.Command, fn overrideFunc) error {
	if err := requireOperator(); err != nil {
		return err
	}
	inv, err := openInvocation(cmd.Name(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer inv.close()

	rec, err := fn(cmd.Context(), inv.engine, engine.Override{Operator: GetCurrentUser(), Reason: overrideReason})
	if err != nil {
		return err
	}
	return printOverride(cmd.OutOrStdout(), rec)
}

func printOverride(w io.Writer, rec audit.Record) error {
	what := rec.Action
	if rec.Target != "" {
		what += " " + rec.Target
	}
	if _, err := fmt.Fprintf(w, "✓ %s by %s\n", what, rec.Operator); err != nil {
		return err
	}
	if rec.PriorReason != "" {
		fmt.Fprintf(w, "  was: %s\n", rec.PriorReason)
	}
	fmt.Fprintf(w, "  audit event %s\n", rec.EventID)
	return nil
}
