package hook

import (
	"encoding/json"
	"strings"
)

// Exit statuses of the decision channel.
const (
	ExitAllow = 0
	ExitWarn  = 1
	ExitBlock = 2
)

// Outcome is the result of an executed action.
type Outcome struct {
	Success bool
	// ErrorText is the failure text to normalize. Empty on success.
	ErrorText string
	// Output is the action's result, used as completion evidence.
	Output string
}

type toolResponse struct {
	IsError     bool   `json:"is_error"`
	Error       string `json:"error"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	ExitCode    *int   `json:"exit_code"`
	Interrupted bool   `json:"interrupted"`
	Output      string `json:"output"`
	Result      string `json:"result"`
	Content     any    `json:"content"`
	Success     *bool  `json:"success"`

	// Search and read tools report results in these instead.
	Filenames any `json:"filenames"`
	Results   any `json:"results"`
	Matches   any `json:"matches"`
	File      any `json:"file"`
}

// evidence is the text a structured response actually returned. Metadata
// such as mode, counts or durations never counts, so an empty search
// yields empty evidence.
func (r toolResponse) evidence() string {
	var file string
	if f, ok := r.File.(map[string]any); ok {
		file, _ = f["content"].(string)
	}
	return firstNonEmpty(
		r.Stdout, r.Output, r.Result, contentText(r.Content), file,
		resultItemText(r.Filenames), resultItemText(r.Results), resultItemText(r.Matches),
	)
}

// ParseOutcome interprets a tool_response payload. Stderr on its own is not
// a failure; a failure needs is_error, a non-empty error, a non-zero exit
// code, success=false, or an interrupt. The raw payload is never used as
// evidence: an unrecognised response carries none.
func ParseOutcome(raw json.RawMessage) Outcome {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Outcome{Success: true}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Outcome{Success: true, Output: s}
	}

	var blocks []any
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return Outcome{Success: true, Output: contentText(blocks)}
	}

	var resp toolResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Outcome{Success: true}
	}

	out := Outcome{Success: true, Output: resp.evidence()}

	switch {
	case resp.IsError:
		out.Success = false
		out.ErrorText = firstNonEmpty(resp.Error, resp.Stderr, contentText(resp.Content), out.Output, "tool reported an error")
	case resp.Error != "":
		out.Success = false
		out.ErrorText = resp.Error
	case resp.ExitCode != nil && *resp.ExitCode != 0:
		out.Success = false
		out.ErrorText = firstNonEmpty(resp.Stderr, resp.Stdout, "non-zero exit status")
	case resp.Success != nil && !*resp.Success:
		out.Success = false
		out.ErrorText = firstNonEmpty(resp.Stderr, out.Output)
	case resp.Interrupted:
		out.Success = false
		out.ErrorText = firstNonEmpty(resp.Stderr, "interrupted")
	}
	return out
}

// contentText flattens MCP-style content into text.
func contentText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			if t := contentText(item); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		if t, ok := c["text"].(string); ok {
			return t
		}
	}
	return ""
}

// resultText flattens search results. Items may be plain strings, text
// blocks, or records with nested content, titles, URLs and snippets.
func resultText(items []any) string {
	var parts []string
	for _, item := range items {
		if t := resultItemText(item); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func resultItemText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		return resultText(c)
	case map[string]any:
		if t, ok := c["text"].(string); ok && t != "" {
			return t
		}
		var parts []string
		for _, key := range []string{"title", "url", "path", "snippet", "line"} {
			if t, ok := c[key].(string); ok && t != "" {
				parts = append(parts, t)
			}
		}
		if inner := resultItemText(c["content"]); inner != "" {
			parts = append(parts, inner)
		}
		return strings.Join(parts, " ")
	}
	return ""
}
