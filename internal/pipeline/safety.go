package pipeline

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/refusal"
)

// systemPrefixes may be read but never written.
var systemPrefixes = []string{
	"/etc", "/usr", "/bin", "/sbin", "/lib", "/boot",
	"/System", "/Library", "/private/etc", "/var/db",
}

// credentialDirs are relative to the home directory and off limits to every
// action kind.
var credentialDirs = []string{
	".ssh", ".aws", ".gnupg", ".kube/config", ".docker/config.json",
	".netrc", ".config/gh/hosts.yml", ".npmrc", ".pypirc",
}

// credentialNames are base-name globs for key material.
var credentialNames = []string{
	"*.pem", "*.p12", "*.pfx", "*.key", "id_rsa*", "id_ed25519*", "id_ecdsa*", "*.keystore",
}

// destructiveCommands are shell shapes that destroy more than a project.
var destructiveCommands = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|~|\$HOME)(\s|$|/\*)`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bdd\b.*\bof=/dev/`),
	regexp.MustCompile(`\bchmod\s+(-R\s+)?[0-7]*777\s+/(\s|$)`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`>\s*/dev/(sd[a-z]|nvme\d|disk\d)`),
}

// DangerousPath blocks actions on system paths, credentials, and the
// gatekeeper's own state, secret and policy.
func DangerousPath() Guard {
	return Func{
		GuardName:     "dangerous_path",
		GuardStage:    StageSafety,
		GuardSeverity: SeverityHigh,
		Fn:            checkDangerousPath,
	}
}

func checkDangerousPath(snap *Snapshot, a hook.Action) (Decision, error) {
	protected := snap.protectedPaths()

	if a.Target != "" {
		target := filepath.Clean(a.Target)
		if why, ok := snap.credential(target); ok {
			return Block(refusal.DangerousPath,
				fmt.Sprintf("%s is %s", target, why),
				"do not read or modify credentials; ask the operator for the value you need"), nil
		}
		for _, p := range protected {
			if within(target, p.path) && (p.allKinds || a.Kind == hook.KindEdit) {
				return Block(refusal.DangerousPath,
					fmt.Sprintf("%s is %s", target, p.what),
					"leave gatekeeper state and policy alone; the operator manages them with `gk`"), nil
			}
		}
		if a.Kind == hook.KindEdit {
			for _, prefix := range systemPrefixes {
				if within(target, prefix) {
					return Block(refusal.DangerousPath,
						fmt.Sprintf("%s is a system path", target),
						"write inside the project directory instead"), nil
				}
			}
		}
	}

	if a.Command != "" {
		for _, re := range destructiveCommands {
			if re.MatchString(a.Command) {
				return Block(refusal.DangerousPath,
					"command is destructive outside the project",
					"scope the command to files inside the project"), nil
			}
		}
		if raw := snap.Config.StateDir; raw != "" && strings.Contains(a.Command, raw) {
			protected = append(protected, protectedPath{path: raw, what: "the gatekeeper state directory"})
		}
		for _, p := range protected {
			if strings.Contains(a.Command, p.path) {
				return Block(refusal.DangerousPath,
					fmt.Sprintf("command touches %s", p.what),
					"leave gatekeeper state and policy alone; the operator manages them with `gk`"), nil
			}
		}
		for _, dir := range credentialDirs {
			if strings.Contains(a.Command, "~/"+dir) || (snap.Home != "" && strings.Contains(a.Command, filepath.Join(snap.Home, dir))) {
				return Block(refusal.DangerousPath,
					"command touches credentials under ~/"+dir,
					"do not read or modify credentials; ask the operator for the value you need"), nil
			}
		}
	}
	return Allow(), nil
}

type protectedPath struct {
	path     string
	what     string
	allKinds bool
}

func (snap *Snapshot) protectedPaths() []protectedPath {
	out := []protectedPath{
		{path: snap.StateDir, what: "the gatekeeper state directory", allKinds: true},
		{path: snap.SecretFile, what: "the gatekeeper signing secret", allKinds: true},
		{path: snap.ProjectConfig, what: "the gatekeeper policy file"},
	}
	for _, p := range snap.Config.Dangerous.Paths {
		out = append(out, protectedPath{path: expandHome(p, snap.Home), what: "a protected path", allKinds: true})
	}
	filtered := out[:0]
	for _, p := range out {
		if p.path != "" {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (snap *Snapshot) credential(target string) (string, bool) {
	if snap.Home != "" {
		for _, dir := range credentialDirs {
			if within(target, filepath.Join(snap.Home, dir)) {
				return "a credential store", true
			}
		}
	}
	base := filepath.Base(target)
	for _, pattern := range credentialNames {
		if ok, _ := path.Match(pattern, base); ok {
			return "key material", true
		}
	}
	return "", false
}

// within reports whether p is dir or below it.
func within(p, dir string) bool {
	if dir == "" {
		return false
	}
	dir = filepath.Clean(dir)
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}

func expandHome(p, home string) string {
	if home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Clean(p)
}

var (
	overrideCommandRe = regexp.MustCompile("(^|[\\s;&|(`/])gk\\s+(reset|unblock|skip|approve-plan|session)\\b")
	envOverrideRe     = regexp.MustCompile(`\bGATEKEEPER_[A-Z_]+=|\b(export|unset)\s+GATEKEEPER_`)
)

// SelfProtection blocks the agent from invoking operator commands or
// steering gatekeeper through its environment.
func SelfProtection() Guard {
	return Func{
		GuardName:     "self_protection",
		GuardStage:    StageSafety,
		GuardSeverity: SeverityHigh,
		Fn: func(_ *Snapshot, a hook.Action) (Decision, error) {
			if a.Command == "" {
				return Allow(), nil
			}
			if m := overrideCommandRe.FindStringSubmatch(a.Command); m != nil {
				return Block(refusal.SelfProtection,
					fmt.Sprintf("`gk %s` is an operator command", m[2]),
					"tell the operator what you need reset and why; they run the command themselves"), nil
			}
			if envOverrideRe.MatchString(a.Command) {
				return Block(refusal.SelfProtection,
					"command changes GATEKEEPER_* settings",
					"run the command without GATEKEEPER_* variables; policy changes go through the operator"), nil
			}
			return Allow(), nil
		},
	}
}
