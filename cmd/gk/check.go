package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/hook"
)

// exitFunc ends the process with the decision's exit status.
var exitFunc = os.Exit

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Gate a proposed action (PreToolUse hook)",
	Long: `Read one PreToolUse envelope from stdin, run it through the guard pipeline
and exit with the decision:

  0  allow
  1  allow with a warning (diagnostic on stderr)
  2  block (Reason and Fix on stderr)

A malformed envelope is allowed and logged. When the state store cannot be
opened at all the action is blocked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := runCheck(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr()); code != hook.ExitAllow {
			exitFunc(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck evaluates one request and returns the exit status.
func runCheck(ctx context.Context, stdin io.Reader, stderr io.Writer) int {
	req, reqErr := hook.ReadRequest(stdin)

	inv, err := openInvocation("check", stderr)
	if err != nil {
		if reqErr != nil {
			return hook.ExitAllow
		}
		fmt.Fprintf(stderr, "gatekeeper: BLOCK (state unavailable)\nReason: %v\nFix: ask the operator to check the state directory and signing secret\n", err)
		return hook.ExitBlock
	}
	defer inv.close()

	if reqErr != nil {
		inv.logger.Warn("malformed hook request, allowing", "error", reqErr)
		return hook.ExitAllow
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration(inv.cfg.InvocationTimeout, defaultInvocationTimeout))
	defer cancel()

	a := hook.NewAction(req, hook.ToolTable(inv.cfg.ToolKinds))
	d := inv.engine.Check(ctx, a)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		inv.logger.Warn("invocation deadline exceeded", "tool", a.Tool)
	}
	if d.Diagnostic != "" {
		fmt.Fprint(stderr, d.Diagnostic)
	}
	VerbosePrintf("gatekeeper: %s %s -> %s\n", a.Tool, a.Subject(), d.Decision.Verdict)
	return d.ExitCode()
}
