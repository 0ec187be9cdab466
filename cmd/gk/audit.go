package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/audit"
	"github.com/boshu2/gatekeeper/internal/formatter"
)

var errLedgerBroken = errors.New("audit ledger failed verification")

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify or list the override ledger",
	Long: `Every operator override is appended to <state_dir>/audit.jsonl as a
hash-chained record. Editing or deleting a record breaks the chain.`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig()
		return runAuditVerify(cmd.OutOrStdout(), cfg.StateDir, outputFormat(cfg))
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List override records",
	Long: `List override records, newest last. -o json writes JSON Lines.

Examples:
  gk audit list
  gk audit list -o json --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig()
		return runAuditList(cmd.OutOrStdout(), cfg.StateDir, outputFormat(cfg), auditLimit)
	},
}

func init() {
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 0, "Show only the last N records (0 = all)")
	auditCmd.AddCommand(auditVerifyCmd, auditListCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditVerify(w io.Writer, stateDir, format string) error {
	records, err := audit.Load(stateDir)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	res := audit.Verify(records)
	if ok, err := writeStructured(w, format, res); ok {
		if err != nil {
			return err
		}
	} else if res.Pass {
		fmt.Fprintf(w, "✓ %d records, chain intact\n", res.RecordCount)
	} else {
		fmt.Fprintf(w, "✗ record %d of %d: %s\n", res.FirstBrokenIndex, res.RecordCount, res.Message)
	}
	if !res.Pass {
		return errLedgerBroken
	}
	return nil
}

func runAuditList(w io.Writer, stateDir, format string, limit int) error {
	records, err := audit.Load(stateDir)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	switch format {
	case "json":
		values := make([]any, len(records))
		for i, r := range records {
			values[i] = r
		}
		return formatter.NewJSONLFormatter().Format(w, values...)
	case "yaml":
		return writeYAML(w, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No overrides recorded.")
		return nil
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = formatter.ColorEnabled(f)
	}
	t := formatter.Styler{Color: color}.Table(w, "TIME", "ACTION", "TARGET", "OPERATOR", "REASON", "WAS")
	t.SetMaxWidth(4, 40).SetMaxWidth(5, 50)
	for _, r := range records {
		t.AddRow(r.TS, r.Action, r.Target, r.Operator, r.Reason, r.PriorReason)
	}
	return t.Render()
}
