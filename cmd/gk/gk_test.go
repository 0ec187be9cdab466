package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/gatekeeper/internal/audit"
	"github.com/boshu2/gatekeeper/internal/engine"
	"github.com/boshu2/gatekeeper/internal/formatter"
	"github.com/boshu2/gatekeeper/internal/hook"
)

func t0() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

// isolate points every config and state location at temp dirs and resets
// the global flags. It returns the state directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GATEKEEPER_CONFIG", filepath.Join(home, "missing.yaml"))
	t.Setenv("GATEKEEPER_STATE_DIR", dir)
	t.Setenv("GATEKEEPER_SECRET", "0123456789abcdef-cli-test")
	t.Setenv("GATEKEEPER_OPERATOR", "")
	t.Setenv("NO_COLOR", "1")

	verbose, output, cfgFile, stateDir = false, "", "", ""
	overrideReason, overrideOperator = "", false
	return dir
}

func request(event, tool string, input map[string]any, response any) *strings.Reader {
	body := map[string]any{
		"session_id":      "s1",
		"hook_event_name": event,
		"tool_name":       tool,
		"tool_input":      input,
		"cwd":             "/work/repo",
	}
	if response != nil {
		body["tool_response"] = response
	}
	data, _ := json.Marshal(body)
	return strings.NewReader(string(data))
}

func TestRunCheck_MalformedRequestFailsOpen(t *testing.T) {
	isolate(t)
	var stderr bytes.Buffer
	code := runCheck(context.Background(), strings.NewReader("{not json"), &stderr)
	assert.Equal(t, hook.ExitAllow, code)
	assert.Empty(t, stderr.String())
}

func TestRunCheck_BlocksEditBeforeStartup(t *testing.T) {
	dir := isolate(t)
	var stderr bytes.Buffer

	code := runCheck(context.Background(),
		request(hook.EventPreToolUse, "Edit", map[string]any{"file_path": "main.go", "new_string": "x"}, nil), &stderr)

	assert.Equal(t, hook.ExitBlock, code)
	assert.Contains(t, stderr.String(), "BLOCK by startup_gate (startup_incomplete)")
	assert.Contains(t, stderr.String(), "Fix: ")
	assert.FileExists(t, filepath.Join(dir, "stats.json"))
	assert.FileExists(t, filepath.Join(dir, "gatekeeper.log"))
}

func TestRunCheck_AllowsRead(t *testing.T) {
	isolate(t)
	var stderr bytes.Buffer
	code := runCheck(context.Background(),
		request(hook.EventPreToolUse, "Read", map[string]any{"file_path": "README.md"}, nil), &stderr)
	assert.Equal(t, hook.ExitAllow, code)
}

func TestRunCheck_BlocksStateDirectoryAccess(t *testing.T) {
	dir := isolate(t)
	var stderr bytes.Buffer
	code := runCheck(context.Background(),
		request(hook.EventPreToolUse, "Bash", map[string]any{"command": "cat " + filepath.Join(dir, "circuit_breaker.json")}, nil), &stderr)
	assert.Equal(t, hook.ExitBlock, code)
	assert.Contains(t, stderr.String(), "dangerous_path")
}

func TestRunRecord_TripsBreakerAfterRepeatedFailures(t *testing.T) {
	isolate(t)
	failure := map[string]any{"is_error": true, "error": "connection refused"}

	var res engine.RecordResult
	for range 3 {
		var ok bool
		res, ok = runRecord(context.Background(),
			request(hook.EventPostToolUse, "Bash", map[string]any{"command": "curl localhost:8080"}, failure), &bytes.Buffer{})
		require.True(t, ok)
	}
	assert.True(t, res.Tripped)

	var stderr bytes.Buffer
	code := runCheck(context.Background(),
		request(hook.EventPreToolUse, "Bash", map[string]any{"command": "curl localhost:8080"}, nil), &stderr)
	assert.Equal(t, hook.ExitBlock, code)
	assert.Contains(t, stderr.String(), "circuit breaker tripped")
	assert.Contains(t, stderr.String(), "gk reset breaker")
}

func TestRunRecord_MalformedIsSkipped(t *testing.T) {
	isolate(t)
	_, ok := runRecord(context.Background(), strings.NewReader(""), &bytes.Buffer{})
	assert.False(t, ok)
}

func TestRunSessionStart_EmptyStdin(t *testing.T) {
	isolate(t)
	require.NoError(t, runSessionStart(context.Background(), strings.NewReader(""), &bytes.Buffer{}))
	require.NoError(t, runSessionStart(context.Background(), nil, &bytes.Buffer{}))
}

func TestRequireOperator(t *testing.T) {
	isolate(t)
	orig := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = orig })

	stdinIsTerminal = func() bool { return true }
	assert.NoError(t, requireOperator())

	stdinIsTerminal = func() bool { return false }
	assert.ErrorIs(t, requireOperator(), errNotOperator)

	overrideOperator = true
	assert.ErrorIs(t, requireOperator(), errNotOperator, "flag alone is not enough")

	t.Setenv(operatorEnv, "1")
	assert.NoError(t, requireOperator())
}

func TestUnblockCommand_WritesAuditRecord(t *testing.T) {
	dir := isolate(t)
	orig := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = orig })
	stdinIsTerminal = func() bool { return true }

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"unblock", "--reason", "agent explained itself"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "✓ unblock by ")

	records, err := audit.Load(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "agent explained itself", records[0].Reason)

	var verify bytes.Buffer
	require.NoError(t, runAuditVerify(&verify, dir, "table"))
	assert.Contains(t, verify.String(), "1 records, chain intact")
}

func TestRunAuditVerify_DetectsEditedRecord(t *testing.T) {
	dir := isolate(t)
	_, err := audit.Append(context.Background(), dir, audit.Entry{Action: "reset", Target: "breaker", Operator: "alice"}, t0())
	require.NoError(t, err)
	_, err = audit.Append(context.Background(), dir, audit.Entry{Action: "unblock", Operator: "alice"}, t0())
	require.NoError(t, err)

	data, err := os.ReadFile(audit.Path(dir))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(audit.Path(dir), bytes.Replace(data, []byte(`"alice"`), []byte(`"mallory"`), 1), 0o600))

	var out bytes.Buffer
	err = runAuditVerify(&out, dir, "json")
	require.ErrorIs(t, err, errLedgerBroken)

	var res audit.VerifyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.Pass)
	assert.Equal(t, 1, res.FirstBrokenIndex)
}

func TestRunAuditList_JSONLines(t *testing.T) {
	dir := isolate(t)
	for _, action := range []string{"reset", "unblock", "approve_plan"} {
		_, err := audit.Append(context.Background(), dir, audit.Entry{Action: action, Operator: "alice"}, t0())
		require.NoError(t, err)
	}

	var out bytes.Buffer
	require.NoError(t, runAuditList(&out, dir, "json", 2))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"action":"unblock"`)

	out.Reset()
	require.NoError(t, runAuditList(&out, t.TempDir(), "table", 0))
	assert.Equal(t, "No overrides recorded.\n", out.String())
}

func TestRenderStatus(t *testing.T) {
	isolate(t)
	runCheck(context.Background(),
		request(hook.EventPreToolUse, "Edit", map[string]any{"file_path": "main.go"}, nil), &bytes.Buffer{})

	inv, err := openInvocation("status", &bytes.Buffer{})
	require.NoError(t, err)
	defer inv.close()

	var out bytes.Buffer
	require.NoError(t, renderStatus(&out, formatter.Styler{}, inv.engine.Status()))
	text := out.String()
	assert.Contains(t, text, "circuit breaker")
	assert.Contains(t, text, "CLOSED")
	assert.Contains(t, text, "startup_incomplete x1")
	assert.Contains(t, text, "git_status, project_context")
	assert.Contains(t, text, "Decisions: 0 allow, 0 warn, 1 block")
}

func TestWriteYAML_UsesJSONNames(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeYAML(&out, engine.EditStatus{Count: 1, Limit: 3, Remaining: 1}))
	assert.Equal(t, "count: 1\nlimit: 3\nremaining: 1\n", out.String())
}

func TestGenerateHooksConfig(t *testing.T) {
	cfg := generateHooksConfig("/usr/local/bin/gk")
	require.Len(t, cfg.PreToolUse, 1)
	assert.Equal(t, "/usr/local/bin/gk check", cfg.PreToolUse[0].Hooks[0].Command)
	assert.Equal(t, "/usr/local/bin/gk record", cfg.PostToolUse[0].Hooks[0].Command)
	assert.Equal(t, "/usr/local/bin/gk session start", cfg.SessionStart[0].Hooks[0].Command)
}
