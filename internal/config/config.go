// Package config provides configuration management for gatekeeper.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (GATEKEEPER_*)
// 3. Project config (.gatekeeper/config.yaml in cwd, or GATEKEEPER_CONFIG)
// 4. Home config (~/.gatekeeper/config.yaml)
// 5. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/gatekeeper/internal/progress"
)

// Config holds all gatekeeper configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output" validate:"omitempty,oneof=table json yaml"`

	// StateDir holds the signed section documents, the audit ledger and the log.
	StateDir string `yaml:"state_dir" json:"state_dir" validate:"required"`

	// SecretFile is read when GATEKEEPER_SECRET is unset.
	SecretFile string `yaml:"secret_file" json:"secret_file"`

	// Verbose mirrors the log to stderr.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// LockTimeout bounds the wait for a section lock (Go duration).
	LockTimeout string `yaml:"lock_timeout" json:"lock_timeout" validate:"omitempty,duration"`

	// InvocationTimeout bounds one hook invocation end to end.
	InvocationTimeout string `yaml:"invocation_timeout" json:"invocation_timeout" validate:"omitempty,duration"`

	Breaker   BreakerConfig   `yaml:"breaker" json:"breaker"`
	Gaming    GamingConfig    `yaml:"gaming" json:"gaming"`
	Gates     GatesConfig     `yaml:"gates" json:"gates"`
	Edits     EditsConfig     `yaml:"edits" json:"edits"`
	Refusal   RefusalConfig   `yaml:"refusal" json:"refusal"`
	Sensitive SensitiveConfig `yaml:"sensitive" json:"sensitive"`
	Plan      PlanConfig      `yaml:"plan" json:"plan"`
	Dangerous DangerousConfig `yaml:"dangerous" json:"dangerous"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`

	// ToolKinds maps action kinds (edit, shell, read, network) to tool-name globs.
	ToolKinds map[string][]string `yaml:"tool_kinds" json:"tool_kinds" validate:"dive,keys,oneof=edit shell read network,endkeys"`

	// Rules are the domain pattern checks evaluated last.
	Rules []Rule `yaml:"rules" json:"rules" validate:"dive"`
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// Threshold trips the breaker on consecutive failures or repeats of one signature.
	// Default: 3
	Threshold int `yaml:"threshold" json:"threshold" validate:"gte=0,lte=100"`
}

// GamingConfig tunes the anti-gaming heuristics shared by all gates.
type GamingConfig struct {
	// Default: 30s
	RapidWindow string `yaml:"rapid_window" json:"rapid_window" validate:"omitempty,duration"`
	// Default: 3
	IdenticalCount int `yaml:"identical_count" json:"identical_count" validate:"gte=0"`
	// Default: 0.7
	StuffingRate float64 `yaml:"stuffing_rate" json:"stuffing_rate" validate:"gte=0,lte=1"`
	// Default: 10
	StuffingWindow int `yaml:"stuffing_window" json:"stuffing_window" validate:"gte=0,lte=50"`
	// Default: 50
	MinEvidence int `yaml:"min_evidence" json:"min_evidence" validate:"gte=0"`
}

// GateConfig describes one progress gate.
type GateConfig struct {
	// Categories are required in the listed order. An empty list disables the gate.
	Categories []progress.Definition `yaml:"categories" json:"categories" validate:"dive"`

	// RapidWindow overrides gaming.rapid_window for this gate.
	RapidWindow string `yaml:"rapid_window" json:"rapid_window,omitempty" validate:"omitempty,duration"`

	// Disabled turns the gate off without dropping its categories.
	Disabled bool `yaml:"disabled" json:"disabled,omitempty"`
}

// Enabled reports whether the gate gates anything.
func (g GateConfig) Enabled() bool {
	return !g.Disabled && len(g.Categories) > 0
}

// GatesConfig holds the three progress gates.
type GatesConfig struct {
	Research     GateConfig `yaml:"research" json:"research"`
	Startup      GateConfig `yaml:"startup" json:"startup"`
	Verification GateConfig `yaml:"verification" json:"verification"`
}

// EditsConfig tunes the edit attempt limiter.
type EditsConfig struct {
	// MaxAttempts is the edit that forces a replan. Default: 3
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" validate:"gte=0,lte=100"`

	// VerifyCommands are regexes; a successful matching shell command clears the counter.
	VerifyCommands []string `yaml:"verify_commands" json:"verify_commands" validate:"dive,regexp"`
}

// RefusalConfig tunes refusal escalation.
type RefusalConfig struct {
	// HaltAfter is the repeat count that halts the pipeline. Default: 3
	HaltAfter int `yaml:"halt_after" json:"halt_after" validate:"gte=0,lte=100"`
}

// SensitiveConfig lists block-once targets.
type SensitiveConfig struct {
	Targets []string `yaml:"targets" json:"targets"`
}

// PlanConfig controls the plan_required guard.
type PlanConfig struct {
	// Required blocks edits until an operator runs gk approve-plan.
	Required bool `yaml:"required" json:"required"`
}

// DangerousConfig extends the built-in dangerous path list.
type DangerousConfig struct {
	Paths []string `yaml:"paths" json:"paths"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every decision when set.
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Rule is one domain pattern check.
type Rule struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Kinds   []string `yaml:"kinds" json:"kinds,omitempty" validate:"dive,oneof=edit shell read network tool"`
	Field   string   `yaml:"field" json:"field" validate:"omitempty,oneof=command target text url subject"`
	Match   string   `yaml:"match" json:"match" validate:"required,regexp"`
	Verdict string   `yaml:"verdict" json:"verdict" validate:"omitempty,oneof=block warn"`
	Reason  string   `yaml:"reason" json:"reason" validate:"required"`
	Fix     string   `yaml:"fix" json:"fix"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput            = "table"
	defaultStateDir          = ".gatekeeper/state"
	defaultLockTimeout       = "2s"
	defaultInvocationTimeout = "5s"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:            defaultOutput,
		StateDir:          defaultStateDir,
		SecretFile:        defaultSecretFile(),
		LockTimeout:       defaultLockTimeout,
		InvocationTimeout: defaultInvocationTimeout,
		Breaker:           BreakerConfig{Threshold: 3},
		Gaming: GamingConfig{
			RapidWindow:    "30s",
			IdenticalCount: progress.DefaultIdenticalCount,
			StuffingRate:   progress.DefaultStuffingRate,
			StuffingWindow: progress.DefaultStuffingWindow,
			MinEvidence:    progress.DefaultMinEvidence,
		},
		Gates: GatesConfig{
			Research: GateConfig{Categories: []progress.Definition{
				{ID: "docs", Tools: []string{"mcp__context7__*", "mcp__ref__*", "mcp__docs__*"}},
				{ID: "web", Tools: []string{"WebSearch", "WebFetch", "mcp__brave__*", "mcp__exa__*"}},
				{ID: "local", Tools: []string{"Grep", "Glob"}, CommandPattern: `^\s*(rg|grep|ag|find|git\s+(log|grep|blame))\b`},
				{ID: "github", Tools: []string{"mcp__github__*"}, CommandPattern: `^\s*gh\s+(search|api|issue|pr|repo)\b`},
			}},
			Startup: GateConfig{
				Categories: []progress.Definition{
					{ID: "git_status", CommandPattern: `^\s*git\s+(status|log)\b`, MinOutput: 1},
					{ID: "project_context", Tools: []string{"Read"}, MinOutput: 20},
				},
				RapidWindow: "0s",
			},
			Verification: GateConfig{},
		},
		Edits: EditsConfig{
			MaxAttempts: 3,
			VerifyCommands: []string{
				`^\s*go\s+(test|vet|build)\b`,
				`^\s*make\s+(test|check|lint)\b`,
				`^\s*(npm|pnpm|yarn)\s+(run\s+)?test\b`,
				`^\s*(pytest|cargo\s+test|swift\s+test|xcodebuild\s+test)\b`,
			},
		},
		Refusal: RefusalConfig{HaltAfter: 3},
		Sensitive: SensitiveConfig{Targets: []string{
			".github/workflows/*",
			".gitlab-ci.yml",
			"*.entitlements",
			"*.xcconfig",
			"*.mobileprovision",
			"Makefile",
			"Dockerfile",
		}},
		ToolKinds: map[string][]string{
			"edit":    {"Edit", "Write", "MultiEdit", "NotebookEdit"},
			"shell":   {"Bash"},
			"read":    {"Read", "Grep", "Glob", "LS", "NotebookRead", "TodoWrite"},
			"network": {"WebFetch", "WebSearch"},
		},
		Rules: []Rule{
			{
				Name:   "force_push",
				Kinds:  []string{"shell"},
				Field:  "command",
				Match:  `\bgit\s+push\b.*(\s--force\b|\s-f\b|\s--force-with-lease\b)`,
				Reason: "force push rewrites shared history",
				Fix:    "push without --force, or ask the operator to do it",
			},
			{
				Name:   "skip_hooks",
				Kinds:  []string{"shell"},
				Field:  "command",
				Match:  `\bgit\s+(commit|push)\b.*\s--no-verify\b`,
				Reason: "--no-verify bypasses repository hooks",
				Fix:    "fix the hook failure and commit without --no-verify",
			},
			{
				Name:   "pipe_to_shell",
				Kinds:  []string{"shell"},
				Field:  "command",
				Match:  `\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z)?sh\b`,
				Reason: "piping a download into a shell executes unreviewed code",
				Fix:    "download the script to a file and read it before running",
			},
			{
				Name:    "sudo",
				Kinds:   []string{"shell"},
				Field:   "command",
				Match:   `(^|[;&|]\s*)sudo\s`,
				Verdict: "warn",
				Reason:  "command escalates privileges",
				Fix:     "prefer a user-level alternative",
			},
		},
	}
}

// defaultSecretFile returns ~/.config/gatekeeper/secret.
func defaultSecretFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gatekeeper", "secret")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "gatekeeper", "secret")
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
//
// A missing file is skipped. An unparsable file or a config that fails
// validation returns the defaults together with the error, so callers can
// keep gating with the strict built-in policy.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()
	var errs []error

	// Load home config
	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("home config: %w", err))
	}
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	// Load project config
	projectConfig, err := loadFromPath(ProjectConfigPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("project config: %w", err))
	}
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	// Apply environment variables
	cfg = applyEnv(cfg)

	// Apply flag overrides
	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		def := keepLocations(Default(), cfg)
		return def, errors.Join(errs...)
	}
	return cfg, nil
}

// keepLocations keeps the location settings of cfg on a default config so a
// rejected policy does not also move the state directory.
func keepLocations(def, cfg *Config) *Config {
	mergeStr(&def.StateDir, cfg.StateDir)
	mergeStr(&def.SecretFile, cfg.SecretFile)
	def.Verbose = cfg.Verbose
	return def
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gatekeeper", "config.yaml")
}

// ProjectConfigPath returns the project config path.
func ProjectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("GATEKEEPER_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".gatekeeper", "config.yaml")
}

// ConfigPaths returns the home and project config paths that Load reads.
func ConfigPaths() []string {
	var paths []string
	for _, p := range []string{homeConfigPath(), ProjectConfigPath()} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("GATEKEEPER_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("GATEKEEPER_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("GATEKEEPER_SECRET_FILE"); v != "" {
		cfg.SecretFile = v
	}
	if os.Getenv("GATEKEEPER_VERBOSE") == "true" || os.Getenv("GATEKEEPER_VERBOSE") == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("GATEKEEPER_LOCK_TIMEOUT"); v != "" {
		cfg.LockTimeout = v
	}
	if n, ok := getEnvInt("GATEKEEPER_BREAKER_THRESHOLD"); ok {
		cfg.Breaker.Threshold = n
	}
	if n, ok := getEnvInt("GATEKEEPER_MAX_EDIT_ATTEMPTS"); ok {
		cfg.Edits.MaxAttempts = n
	}
	if v, ok := getEnvBool("GATEKEEPER_PLAN_REQUIRED"); ok {
		cfg.Plan.Required = v
	}
	if v := os.Getenv("GATEKEEPER_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeFloat overwrites dst with src when src is non-zero.
func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// mergeStrings replaces dst with src when src is non-empty.
func mergeStrings(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans merge with OR semantics: a layer can enable, never disable.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	mergeStr(&dst.StateDir, src.StateDir)
	mergeStr(&dst.SecretFile, src.SecretFile)
	if src.Verbose {
		dst.Verbose = true
	}
	mergeStr(&dst.LockTimeout, src.LockTimeout)
	mergeStr(&dst.InvocationTimeout, src.InvocationTimeout)

	mergeInt(&dst.Breaker.Threshold, src.Breaker.Threshold)
	mergeGaming(&dst.Gaming, &src.Gaming)
	mergeGate(&dst.Gates.Research, &src.Gates.Research)
	mergeGate(&dst.Gates.Startup, &src.Gates.Startup)
	mergeGate(&dst.Gates.Verification, &src.Gates.Verification)
	mergeEdits(&dst.Edits, &src.Edits)
	mergeInt(&dst.Refusal.HaltAfter, src.Refusal.HaltAfter)
	mergeStrings(&dst.Sensitive.Targets, src.Sensitive.Targets)
	if src.Plan.Required {
		dst.Plan.Required = true
	}
	dst.Dangerous.Paths = append(dst.Dangerous.Paths, src.Dangerous.Paths...)
	mergeStr(&dst.Metrics.Textfile, src.Metrics.Textfile)

	for kind, globs := range src.ToolKinds {
		if dst.ToolKinds == nil {
			dst.ToolKinds = map[string][]string{}
		}
		dst.ToolKinds[kind] = append([]string(nil), globs...)
	}
	if len(src.Rules) > 0 {
		dst.Rules = append([]Rule(nil), src.Rules...)
	}

	return dst
}

// mergeGaming merges gaming threshold fields.
func mergeGaming(dst, src *GamingConfig) {
	mergeStr(&dst.RapidWindow, src.RapidWindow)
	mergeInt(&dst.IdenticalCount, src.IdenticalCount)
	mergeFloat(&dst.StuffingRate, src.StuffingRate)
	mergeInt(&dst.StuffingWindow, src.StuffingWindow)
	mergeInt(&dst.MinEvidence, src.MinEvidence)
}

// mergeGate merges one gate. Categories replace as a whole so their order
// stays meaningful.
func mergeGate(dst, src *GateConfig) {
	if len(src.Categories) > 0 {
		dst.Categories = append([]progress.Definition(nil), src.Categories...)
	}
	mergeStr(&dst.RapidWindow, src.RapidWindow)
	if src.Disabled {
		dst.Disabled = true
	}
}

// mergeEdits merges limiter fields.
func mergeEdits(dst, src *EditsConfig) {
	mergeInt(&dst.MaxAttempts, src.MaxAttempts)
	mergeStrings(&dst.VerifyCommands, src.VerifyCommands)
}

// Duration parses s, returning fallback when s is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Thresholds returns the gaming thresholds for gate g.
func (c *Config) Thresholds(g GateConfig) progress.Thresholds {
	th := progress.Thresholds{
		RapidWindow:    Duration(c.Gaming.RapidWindow, progress.DefaultRapidWindow),
		IdenticalCount: c.Gaming.IdenticalCount,
		StuffingRate:   c.Gaming.StuffingRate,
		StuffingWindow: c.Gaming.StuffingWindow,
		MinEvidence:    c.Gaming.MinEvidence,
	}
	if g.RapidWindow != "" {
		th.RapidWindow = Duration(g.RapidWindow, th.RapidWindow)
	}
	return th
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.gatekeeper/config.yaml"
	SourceProject Source = ".gatekeeper/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether the env var held one.
func getEnvBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// getEnvInt returns the integer value and whether the env var held one.
func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolveStringField resolves a string through the precedence chain.
// Returns the resolved value and its source.
func resolveStringField(home, project, env, flag, def string) resolved {
	// Start with default
	result := resolved{Value: def, Source: SourceDefault}

	// Home config overrides default
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}

	// Project config overrides home
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}

	// Environment overrides project
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}

	// Flag overrides everything (if set)
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}

	return result
}

type resolved struct {
	Value  interface{} `json:"value" yaml:"value"`
	Source Source      `json:"source" yaml:"source"`
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Output           resolved `json:"output" yaml:"output"`
	StateDir         resolved `json:"state_dir" yaml:"state_dir"`
	SecretFile       resolved `json:"secret_file" yaml:"secret_file"`
	Verbose          resolved `json:"verbose" yaml:"verbose"`
	LockTimeout      resolved `json:"lock_timeout" yaml:"lock_timeout"`
	BreakerThreshold resolved `json:"breaker_threshold" yaml:"breaker_threshold"`
	MaxEditAttempts  resolved `json:"max_edit_attempts" yaml:"max_edit_attempts"`
	PlanRequired     resolved `json:"plan_required" yaml:"plan_required"`
	MetricsTextfile  resolved `json:"metrics_textfile" yaml:"metrics_textfile"`
}

// Flags are the command-line values that take part in resolution.
type Flags struct {
	Output   string
	StateDir string
	Verbose  bool
}

// field describes one resolvable scalar.
type field struct {
	get func(*Config) string
	env string
	def string
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flags Flags) *ResolvedConfig {
	// Load configs once
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(ProjectConfigPath())
	def := Default()

	resolve := func(f field, flag string) resolved {
		var home, project string
		if homeConfig != nil {
			home = f.get(homeConfig)
		}
		if projectConfig != nil {
			project = f.get(projectConfig)
		}
		env, _ := getEnvString(f.env)
		return resolveStringField(home, project, env, flag, f.def)
	}

	rc := &ResolvedConfig{
		Verbose:      resolved{Value: false, Source: SourceDefault},
		PlanRequired: resolved{Value: false, Source: SourceDefault},
	}
	rc.Output = resolve(field{func(c *Config) string { return c.Output }, "GATEKEEPER_OUTPUT", def.Output}, flags.Output)
	rc.StateDir = resolve(field{func(c *Config) string { return c.StateDir }, "GATEKEEPER_STATE_DIR", def.StateDir}, flags.StateDir)
	rc.SecretFile = resolve(field{func(c *Config) string { return c.SecretFile }, "GATEKEEPER_SECRET_FILE", def.SecretFile}, "")
	rc.LockTimeout = resolve(field{func(c *Config) string { return c.LockTimeout }, "GATEKEEPER_LOCK_TIMEOUT", def.LockTimeout}, "")
	rc.BreakerThreshold = resolve(field{func(c *Config) string { return itoa(c.Breaker.Threshold) },
		"GATEKEEPER_BREAKER_THRESHOLD", itoa(def.Breaker.Threshold)}, "")
	rc.MaxEditAttempts = resolve(field{func(c *Config) string { return itoa(c.Edits.MaxAttempts) },
		"GATEKEEPER_MAX_EDIT_ATTEMPTS", itoa(def.Edits.MaxAttempts)}, "")
	rc.MetricsTextfile = resolve(field{func(c *Config) string { return c.Metrics.Textfile }, "GATEKEEPER_METRICS_TEXTFILE", ""}, "")

	// Booleans use OR semantics through the chain.
	if homeConfig != nil && homeConfig.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if projectConfig != nil && projectConfig.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if v, ok := getEnvBool("GATEKEEPER_VERBOSE"); ok && v {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flags.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	if homeConfig != nil && homeConfig.Plan.Required {
		rc.PlanRequired = resolved{Value: true, Source: SourceHome}
	}
	if projectConfig != nil && projectConfig.Plan.Required {
		rc.PlanRequired = resolved{Value: true, Source: SourceProject}
	}
	if v, ok := getEnvBool("GATEKEEPER_PLAN_REQUIRED"); ok {
		rc.PlanRequired = resolved{Value: v, Source: SourceEnv}
	}

	return rc
}
