package hook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequest(t *testing.T) {
	in := `{"session_id":"s1","hook_event_name":"PreToolUse","tool_name":"Edit",
		"tool_input":{"file_path":"src/main.go","new_string":"x := 1"},"cwd":"/repo","extra":true}`
	req, err := ReadRequest(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "Edit", req.ToolName)
	assert.Equal(t, "src/main.go", req.ToolInput.FilePath)
	assert.Equal(t, EventPreToolUse, req.HookEventName)
}

func TestReadRequest_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"not json":     "{nope",
		"missing tool": `{"tool_input":{}}`,
		"wrong type":   `{"tool_name":42}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRequest(strings.NewReader(in))
			require.ErrorIs(t, err, ErrMalformedRequest)
		})
	}
}

func TestReadRequest_TooLarge(t *testing.T) {
	big := `{"tool_name":"Bash","tool_input":{"command":"` + strings.Repeat("a", MaxRequestBytes) + `"}}`
	_, err := ReadRequest(strings.NewReader(big))
	require.ErrorIs(t, err, ErrMalformedRequest)
}

func TestReadSession_EmptyIsFine(t *testing.T) {
	req, err := ReadSession(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, req.SessionID)
}

func TestClassify(t *testing.T) {
	table := DefaultToolKinds()
	assert.Equal(t, KindEdit, Classify("MultiEdit", table))
	assert.Equal(t, KindShell, Classify("Bash", table))
	assert.Equal(t, KindRead, Classify("Grep", table))
	assert.Equal(t, KindNetwork, Classify("WebFetch", table))
	assert.Equal(t, KindTool, Classify("mcp__github__search_code", table))

	table[KindNetwork] = append(table[KindNetwork], "mcp__fetch__*")
	assert.Equal(t, KindNetwork, Classify("mcp__fetch__get", table))
}

func TestParseOutcome_EmptyResultsCarryNoEvidence(t *testing.T) {
	for _, raw := range []string{
		`{"mode":"files_with_matches","filenames":[],"numFiles":0}`,
		`{"filenames":[],"durationMs":12,"numFiles":0,"truncated":false}`,
		`{"query":"gatekeeper flock timeout semantics","results":[],"durationSeconds":1.4}`,
		`{"mode":"content","content":"","numLines":0}`,
		`{"matches":[],"total":0}`,
		`{"durationMs":40,"status":"completed","somethingElse":{"nested":true}}`,
		`42`,
	} {
		t.Run(raw, func(t *testing.T) {
			got := ParseOutcome(json.RawMessage(raw))
			assert.True(t, got.Success)
			assert.Empty(t, got.Output)
		})
	}
}

func TestToolTable_OverridesConfiguredKindsOnly(t *testing.T) {
	table := ToolTable(map[string][]string{"edit": {"Edit", "mcp__fs__write_*"}})
	assert.Equal(t, KindEdit, Classify("mcp__fs__write_file", table))
	assert.Equal(t, KindShell, Classify("Bash", table))
	assert.Equal(t, KindTool, Classify("Write", table))
}

func TestNewAction(t *testing.T) {
	req := Request{
		SessionID: "s1",
		ToolName:  "Write",
		ToolInput: ToolInput{FilePath: "./pkg/../Makefile", Content: "all:"},
		Cwd:       "/repo",
	}
	a := NewAction(req, DefaultToolKinds())
	assert.Equal(t, KindEdit, a.Kind)
	assert.Equal(t, "/repo/Makefile", a.Target)
	assert.Equal(t, "all:", a.Text)
	assert.Equal(t, "/repo/Makefile", a.Subject())
	assert.False(t, a.IsBootstrap())

	sh := NewAction(Request{ToolName: "Bash", ToolInput: ToolInput{Command: "  go test ./...  "}}, DefaultToolKinds())
	assert.Equal(t, "go test ./...", sh.Subject())

	rd := NewAction(Request{ToolName: "Read", ToolInput: ToolInput{FilePath: "/etc/hosts"}}, DefaultToolKinds())
	assert.True(t, rd.IsBootstrap())
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		success   bool
		errSubstr string
		output    string
	}{
		{"absent", ``, true, "", ""},
		{"plain string", `"file written"`, true, "", "file written"},
		{"stderr alone is not failure", `{"stdout":"ok","stderr":"warning: deprecated"}`, true, "", "ok"},
		{"is_error", `{"is_error":true,"error":"bash: foo: command not found"}`, false, "command not found", ""},
		{"error field", `{"error":"permission denied"}`, false, "permission denied", ""},
		{"exit code", `{"stdout":"","stderr":"FAIL pkg","exit_code":1}`, false, "FAIL pkg", ""},
		{"zero exit code", `{"stdout":"PASS","exit_code":0}`, true, "", "PASS"},
		{"interrupted", `{"interrupted":true}`, false, "interrupted", ""},
		{"mcp content", `{"content":[{"type":"text","text":"doc one"},{"type":"text","text":"doc two"}]}`, true, "", "doc one\ndoc two"},
		{"content array", `[{"type":"text","text":"result"}]`, true, "", "result"},
		{"grep filenames", `{"mode":"files_with_matches","filenames":["a.go","b.go"],"numFiles":2}`, true, "", "a.go\nb.go"},
		{"grep content", `{"mode":"content","content":"a.go:12: flock(fd)","numLines":1}`, true, "", "a.go:12: flock(fd)"},
		{"read file", `{"type":"text","file":{"filePath":"/r/a.go","content":"package a"}}`, true, "", "package a"},
		{"web results", `{"query":"flock","results":[{"tool_use_id":"x","content":[{"title":"flock(2)","url":"https://man7.org/flock"}]}]}`, true, "", "flock(2) https://man7.org/flock"},
		{"is_error without text", `{"is_error":true}`, false, "tool reported an error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			got := ParseOutcome(raw)
			assert.Equal(t, tt.success, got.Success)
			if tt.errSubstr != "" {
				assert.Contains(t, got.ErrorText, tt.errSubstr)
			}
			if tt.output != "" {
				assert.Equal(t, tt.output, got.Output)
			}
		})
	}
}
