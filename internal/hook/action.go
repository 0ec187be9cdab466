package hook

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind is the class of a gated action.
type Kind string

const (
	KindEdit    Kind = "edit"
	KindShell   Kind = "shell"
	KindRead    Kind = "read"
	KindNetwork Kind = "network"
	KindTool    Kind = "tool"
)

// classifyOrder is the precedence used when a tool name matches more than
// one kind.
var classifyOrder = []Kind{KindEdit, KindShell, KindRead, KindNetwork}

// DefaultToolKinds maps tool-name globs to kinds for the stock host tools.
func DefaultToolKinds() map[Kind][]string {
	return map[Kind][]string{
		KindEdit:    {"Edit", "Write", "MultiEdit", "NotebookEdit"},
		KindShell:   {"Bash"},
		KindRead:    {"Read", "Grep", "Glob", "LS", "NotebookRead", "TodoWrite"},
		KindNetwork: {"WebFetch", "WebSearch"},
	}
}

// ToolTable converts a config tool-kind table. Kinds missing from configured
// keep their default globs.
func ToolTable(configured map[string][]string) map[Kind][]string {
	table := DefaultToolKinds()
	for kind, globs := range configured {
		table[Kind(kind)] = globs
	}
	return table
}

// Classify returns the kind of tool according to table. Unmatched tools
// (including MCP tools) are KindTool.
func Classify(tool string, table map[Kind][]string) Kind {
	for _, k := range classifyOrder {
		for _, pattern := range table[k] {
			if ok, _ := path.Match(pattern, tool); ok {
				return k
			}
		}
	}
	return KindTool
}

// Action is the normalized form of a proposed tool call.
type Action struct {
	Tool    string
	Kind    Kind
	Target  string
	Command string
	URL     string
	Query   string
	// Text is content the action would write, for pattern rules.
	Text      string
	Cwd       string
	SessionID string
}

// IsBootstrap reports whether the action only observes. Observation stays
// possible while the breaker is tripped so the agent can diagnose.
func (a Action) IsBootstrap() bool {
	return a.Kind == KindRead
}

// Subject returns the string guards match against: the command for shell
// actions, otherwise the target or URL.
func (a Action) Subject() string {
	switch {
	case a.Command != "":
		return a.Command
	case a.Target != "":
		return a.Target
	default:
		return a.URL
	}
}

// NewAction normalizes req using the tool-kind table.
func NewAction(req Request, table map[Kind][]string) Action {
	in := req.ToolInput
	a := Action{
		Tool:      req.ToolName,
		Kind:      Classify(req.ToolName, table),
		Command:   strings.TrimSpace(in.Command),
		URL:       in.URL,
		Query:     in.Query,
		Cwd:       req.Cwd,
		SessionID: req.SessionID,
	}

	target := firstNonEmpty(in.FilePath, in.NotebookPath, in.Path)
	if target != "" {
		if !filepath.IsAbs(target) && req.Cwd != "" {
			target = filepath.Join(req.Cwd, target)
		}
		a.Target = filepath.Clean(target)
	}

	a.Text = firstNonEmpty(in.Content, in.NewString)
	if a.Query == "" {
		a.Query = firstNonEmpty(in.Pattern, in.Prompt)
	}
	return a
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
