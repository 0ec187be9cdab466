package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/hook"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session lifecycle",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Reset session state (SessionStart hook)",
	Long: `Reset the session-scoped sections: research, startup and verification
progress, the edit counter, plan approval, pending approvals and the action
history. The circuit breaker, refusal tracking, gaming tallies and decision
stats carry over until an operator resets them.

Reads an optional SessionStart envelope from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var stdin io.Reader = cmd.InOrStdin()
		if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			stdin = nil
		}
		return runSessionStart(cmd.Context(), stdin, cmd.ErrOrStderr())
	},
}

func init() {
	sessionCmd.AddCommand(sessionStartCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionStart(ctx context.Context, stdin io.Reader, stderr io.Writer) error {
	var req hook.Request
	var reqErr error
	if stdin != nil {
		req, reqErr = hook.ReadSession(stdin)
	}

	inv, err := openInvocation("session", stderr)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer inv.close()

	if reqErr != nil {
		inv.logger.Warn("malformed session envelope", "error", reqErr)
	}
	if err := inv.engine.SessionStart(ctx, req.SessionID); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	VerbosePrintf("gatekeeper: session %q started\n", req.SessionID)
	return nil
}
