package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/engine"
	"github.com/boshu2/gatekeeper/internal/formatter"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current state",
	Long: `Show the circuit breaker, refusal tracking, the edit counter, plan approval,
gate progress and decision stats. Sections whose documents fail signature
verification are listed as tampered; gatekeeper reads them as defaults.

Examples:
  gk status
  gk status -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := openInvocation("status", cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer inv.close()

		st := inv.engine.Status()
		w := cmd.OutOrStdout()
		if ok, err := writeStructured(w, outputFormat(inv.cfg), st); ok {
			return err
		}
		color := false
		if f, isFile := w.(*os.File); isFile {
			color = formatter.ColorEnabled(f)
		}
		return renderStatus(w, formatter.Styler{Color: color}, st)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func renderStatus(w io.Writer, s formatter.Styler, st engine.Status) error {
	fmt.Fprintln(w, s.Title("Gatekeeper Status"))
	fmt.Fprintln(w, s.Muted("state: "+st.StateDir))
	fmt.Fprintln(w)

	state := s.Table(w, "CHECK", "STATUS", "DETAIL")

	breakerDetail := fmt.Sprintf("%d consecutive failures", st.Breaker.FailureCount)
	if st.Breaker.Tripped {
		breakerDetail = st.Breaker.TripReason
	}
	state.AddRow("circuit breaker", s.Status(st.Breaker.Status()), breakerDetail)

	refusalStatus, refusalDetail := "OK", "no repeated blocks"
	if len(st.Refusal.Entries) > 0 {
		refusalStatus = "WARN"
		refusalDetail = refusalCounts(st)
	}
	if st.Refusal.Halted {
		refusalStatus = "HALTED"
		refusalDetail = "on " + string(st.Refusal.HaltedType) + "; run `gk unblock`"
	}
	state.AddRow("refusals", s.Status(refusalStatus), refusalDetail)

	editStatus := "OK"
	if st.Edits.Remaining == 0 {
		editStatus = "WARN"
	}
	state.AddRow("edits", s.Status(editStatus),
		fmt.Sprintf("%d of %d, %d left before replan", st.Edits.Count, st.Edits.Limit, st.Edits.Remaining))

	planStatus, planDetail := "NOT APPROVED", fmt.Sprintf("%d replans", st.Planning.ReplanCount)
	if st.Planning.PlanApproved {
		planStatus = "APPROVED"
		planDetail = "by " + st.Planning.ApprovedBy + ", " + planDetail
	}
	state.AddRow("plan", s.Status(planStatus), planDetail)

	if len(st.PendingApprovals) > 0 {
		state.AddRow("approvals", s.Status("PENDING"), strings.Join(st.PendingApprovals, ", "))
	}
	if err := state.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, s.Title("Gates"))
	gates := s.Table(w, "GATE", "STATUS", "COMPLETED", "MISSING")
	for _, g := range st.Gates {
		if !g.Enabled {
			gates.AddRow(g.Name, s.Muted("disabled"), "", "")
			continue
		}
		status := "PENDING"
		switch {
		case g.Satisfied:
			status = "SATISFIED"
		case len(g.Gaming) > 0:
			status = "GAMED"
		}
		done := append(append([]string(nil), g.Completed...), suffixAll(g.Skipped, " (skipped)")...)
		gates.AddRow(g.Name, s.Status(status), strings.Join(done, ", "), strings.Join(g.Missing, ", "))
	}
	if err := gates.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	last := "never"
	if st.Stats.LastDecisionAt != nil {
		last = st.Stats.LastDecisionAt.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "Decisions: %d allow, %d warn, %d block (last %s)\n", st.Stats.Allow, st.Stats.Warn, st.Stats.Block, last)
	if len(st.Patterns) > 0 {
		fmt.Fprintf(w, "Gaming patterns seen: %s\n", countList(st.Patterns))
	}
	if len(st.Tampered) > 0 {
		fmt.Fprintf(w, "%s sections failed verification and read as defaults: %s\n",
			s.Status("FAIL"), strings.Join(st.Tampered, ", "))
	}
	return nil
}

func refusalCounts(st engine.Status) string {
	counts := make(map[string]int, len(st.Refusal.Entries))
	for bt, e := range st.Refusal.Entries {
		counts[string(bt)] = e.Count
	}
	return countList(counts)
}

// countList renders "a x2, b x1" in key order.
func countList(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" x"+strconv.Itoa(m[k]))
	}
	return strings.Join(parts, ", ")
}

func suffixAll(list []string, suffix string) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v + suffix
	}
	return out
}
