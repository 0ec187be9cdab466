package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	output   string
	cfgFile  string
	stateDir string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gk",
	Short: "Policy gate for coding-agent actions",
	Long: `gk is gatekeeper, a policy engine that gates a coding agent's tool calls.

The agent host runs gk as a hook before and after every tool call. Each
proposed action is checked against signed state: the circuit breaker, the
research and startup gates, the edit limiter, sensitive targets and the
refusal escalator.

Hook Commands:
  check          Gate a proposed action (PreToolUse)
  record         Record an executed action (PostToolUse)
  session start  Reset session state (SessionStart)

Operator Commands:
  reset          Reset the breaker, a gate, or other state
  unblock        Lift a refusal halt
  skip           Skip a gate category after an attempt
  approve-plan   Approve the current plan

Inspection:
  status         Show current state
  audit          Verify or list the override ledger
  config         Show resolved configuration
  hooks          Print the hook settings snippet
  version        Show version information

Exit status of check: 0 allow, 1 warn, 2 block.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror the log to stderr")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Project config file (default: .gatekeeper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "State directory (default: .gatekeeper/state)")
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool {
	return verbose
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

// VerbosePrintf prints to stderr only when verbose mode is enabled. Stdout
// belongs to the agent host during hook invocations.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv("GATEKEEPER_CONFIG", path)
}

// GetCurrentUser returns the current system username.
// Uses os/user package for reliable identity, not spoofable via env vars.
func GetCurrentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
