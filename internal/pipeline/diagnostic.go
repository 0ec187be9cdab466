package pipeline

import (
	"fmt"
	"strings"
)

// Diagnostic renders the human-readable explanation written to stderr.
// An allow without warnings renders as "". Notes are appended verbatim
// after a block, for example an escalation annotation.
func Diagnostic(res Result, notes ...string) string {
	var b strings.Builder
	if res.Decision.Blocked() {
		writeDecision(&b, res.Decision)
		for _, n := range notes {
			if n != "" {
				b.WriteString(n)
				b.WriteString("\n")
			}
		}
		return b.String()
	}
	for _, w := range res.Warnings {
		writeDecision(&b, w)
	}
	return b.String()
}

func writeDecision(b *strings.Builder, d Decision) {
	header := "gatekeeper: " + d.Verdict.String()
	if d.Guard != "" {
		header += " by " + d.Guard
	}
	if d.BlockType != "" {
		header += " (" + string(d.BlockType) + ")"
	}
	fmt.Fprintln(b, header)
	fmt.Fprintf(b, "Reason: %s\n", d.Reason)
	for _, line := range d.Details {
		fmt.Fprintf(b, "  - %s\n", line)
	}
	if d.Fix != "" {
		fmt.Fprintf(b, "Fix: %s\n", d.Fix)
	}
}
