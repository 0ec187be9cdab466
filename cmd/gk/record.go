package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/engine"
	"github.com/boshu2/gatekeeper/internal/hook"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an executed action (PostToolUse hook)",
	Long: `Read one PostToolUse envelope from stdin and update the circuit breaker,
the action history, gate progress and the edit counter. Always exits 0.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runRecord(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

func runRecord(ctx context.Context, stdin io.Reader, stderr io.Writer) (engine.RecordResult, bool) {
	req, reqErr := hook.ReadRequest(stdin)

	inv, err := openInvocation("record", stderr)
	if err != nil {
		return engine.RecordResult{}, false
	}
	defer inv.close()

	if reqErr != nil {
		inv.logger.Warn("malformed hook request, not recorded", "error", reqErr)
		return engine.RecordResult{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration(inv.cfg.InvocationTimeout, defaultInvocationTimeout))
	defer cancel()

	a := hook.NewAction(req, hook.ToolTable(inv.cfg.ToolKinds))
	res := inv.engine.Record(ctx, a, hook.ParseOutcome(req.ToolResponse))

	if res.Tripped && !res.Success {
		VerbosePrintf("gatekeeper: circuit breaker tripped (%s)\n", res.Signature)
	}
	for gate, ids := range res.Completed {
		VerbosePrintf("gatekeeper: %s completed %s\n", gate, strings.Join(ids, ", "))
	}
	return res, true
}
