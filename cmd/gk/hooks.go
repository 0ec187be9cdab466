package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// HookEntry represents a single hook command (e.g., {"type": "command", "command": "..."}).
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookGroup represents a hook group with optional matcher and a hooks array.
type HookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks"`
}

// HooksConfig is the hooks section of the agent host's settings.
type HooksConfig struct {
	SessionStart []HookGroup `json:"SessionStart"`
	PreToolUse   []HookGroup `json:"PreToolUse"`
	PostToolUse  []HookGroup `json:"PostToolUse"`
}

var hooksBinary string

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Agent host hook settings",
}

var hooksSnippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Print the hook settings snippet",
	Long: `Print the "hooks" block that wires gk into the agent host's settings.json:

  SessionStart  gk session start
  PreToolUse    gk check   (every tool)
  PostToolUse   gk record  (every tool)

Merge the output into ~/.claude/settings.json or the project's
.claude/settings.json.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wrapper := struct {
			Hooks *HooksConfig `json:"hooks"`
		}{Hooks: generateHooksConfig(hooksBinary)}
		if err := writeJSON(cmd.OutOrStdout(), wrapper); err != nil {
			return fmt.Errorf("marshal hooks: %w", err)
		}
		return nil
	},
}

func init() {
	hooksSnippetCmd.Flags().StringVar(&hooksBinary, "binary", "gk", "Command used to invoke gatekeeper")
	hooksCmd.AddCommand(hooksSnippetCmd)
	rootCmd.AddCommand(hooksCmd)
}

// generateHooksConfig gates every tool. Timeouts are in seconds and leave
// room above the invocation timeout.
func generateHooksConfig(bin string) *HooksConfig {
	return &HooksConfig{
		SessionStart: []HookGroup{
			{Hooks: []HookEntry{{Type: "command", Command: bin + " session start", Timeout: 10}}},
		},
		PreToolUse: []HookGroup{
			{Matcher: "*", Hooks: []HookEntry{{Type: "command", Command: bin + " check", Timeout: 10}}},
		},
		PostToolUse: []HookGroup{
			{Matcher: "*", Hooks: []HookEntry{{Type: "command", Command: bin + " record", Timeout: 10}}},
		},
	}
}
