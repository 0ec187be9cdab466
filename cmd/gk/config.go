package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/gatekeeper/internal/config"
)

var (
	configShow   bool
	configPolicy bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration",
	Long: `View gatekeeper configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (GATEKEEPER_*)
  3. Project config (.gatekeeper/config.yaml)
  4. Home config (~/.gatekeeper/config.yaml)
  5. Defaults

A config file that fails to parse or validate is ignored as a whole; the
built-in policy stays in force and the error is reported here.

Environment variables:
  GATEKEEPER_CONFIG             - Explicit project config file path
  GATEKEEPER_OUTPUT             - Default output format (table, json, yaml)
  GATEKEEPER_STATE_DIR          - State directory
  GATEKEEPER_SECRET             - Signing secret (wins over the secret file)
  GATEKEEPER_SECRET_FILE        - Signing secret file
  GATEKEEPER_VERBOSE            - Mirror the log to stderr (true/1)
  GATEKEEPER_LOCK_TIMEOUT       - Section lock timeout (e.g. 2s)
  GATEKEEPER_BREAKER_THRESHOLD  - Failures that trip the breaker
  GATEKEEPER_MAX_EDIT_ATTEMPTS  - Edit that forces a replan
  GATEKEEPER_PLAN_REQUIRED      - Require an approved plan before edits
  GATEKEEPER_METRICS_TEXTFILE   - Prometheus textfile path
  GATEKEEPER_OPERATOR           - Set to 1 to allow --operator without a terminal

Examples:
  gk config --show           # Show resolved configuration
  gk config --show -o json   # Output as JSON
  gk config --policy -o yaml # Full effective policy`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show resolved configuration with sources")
	configCmd.Flags().BoolVar(&configPolicy, "policy", false, "Show the full effective policy")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if !configShow && !configPolicy {
		return cmd.Help()
	}
	w := cmd.OutOrStdout()

	cfg, loadErr := loadConfig()
	format := outputFormat(cfg)

	if configPolicy {
		if format == "json" {
			return writeJSON(w, cfg)
		}
		return writeYAML(w, cfg)
	}

	resolved := config.Resolve(config.Flags{Output: output, StateDir: stateDir, Verbose: GetVerbose()})
	if ok, err := writeStructured(w, format, resolved); ok {
		return err
	}

	fmt.Fprintln(w, "Gatekeeper Configuration")
	fmt.Fprintln(w, "========================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config files:")
	labels := []string{"Home:   ", "Project:"}
	for i, path := range config.ConfigPaths() {
		label := "File:   "
		if i < len(labels) {
			label = labels[i]
		}
		printConfigFile(w, label, path)
	}
	if loadErr != nil {
		fmt.Fprintf(w, "  ✗ rejected, built-in policy in force: %v\n", loadErr)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resolved values:")
	fmt.Fprintf(w, "  output:            %v  (from %s)\n", resolved.Output.Value, resolved.Output.Source)
	fmt.Fprintf(w, "  state_dir:         %v  (from %s)\n", resolved.StateDir.Value, resolved.StateDir.Source)
	fmt.Fprintf(w, "  secret_file:       %v  (from %s)\n", resolved.SecretFile.Value, resolved.SecretFile.Source)
	fmt.Fprintf(w, "  verbose:           %v  (from %s)\n", resolved.Verbose.Value, resolved.Verbose.Source)
	fmt.Fprintf(w, "  lock_timeout:      %v  (from %s)\n", resolved.LockTimeout.Value, resolved.LockTimeout.Source)
	fmt.Fprintf(w, "  breaker.threshold: %v  (from %s)\n", resolved.BreakerThreshold.Value, resolved.BreakerThreshold.Source)
	fmt.Fprintf(w, "  edits.max:         %v  (from %s)\n", resolved.MaxEditAttempts.Value, resolved.MaxEditAttempts.Source)
	fmt.Fprintf(w, "  plan.required:     %v  (from %s)\n", resolved.PlanRequired.Value, resolved.PlanRequired.Source)
	fmt.Fprintf(w, "  metrics.textfile:  %v  (from %s)\n", resolved.MetricsTextfile.Value, resolved.MetricsTextfile.Source)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (if set):")
	envVars := []string{
		"GATEKEEPER_CONFIG",
		"GATEKEEPER_OUTPUT",
		"GATEKEEPER_STATE_DIR",
		"GATEKEEPER_SECRET_FILE",
		"GATEKEEPER_VERBOSE",
		"GATEKEEPER_LOCK_TIMEOUT",
		"GATEKEEPER_BREAKER_THRESHOLD",
		"GATEKEEPER_MAX_EDIT_ATTEMPTS",
		"GATEKEEPER_PLAN_REQUIRED",
		"GATEKEEPER_METRICS_TEXTFILE",
		"GATEKEEPER_OPERATOR",
	}
	anySet := false
	for _, env := range envVars {
		if v := os.Getenv(env); v != "" {
			fmt.Fprintf(w, "  %s=%s\n", env, v)
			anySet = true
		}
	}
	if os.Getenv(secretEnv) != "" {
		fmt.Fprintf(w, "  %s=(set, hidden)\n", secretEnv)
		anySet = true
	}
	if !anySet {
		fmt.Fprintln(w, "  (none set)")
	}
	return nil
}

func printConfigFile(w io.Writer, label, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  ✓ %s %s\n", label, path)
	} else {
		fmt.Fprintf(w, "  ✗ %s %s (not found)\n", label, path)
	}
}
