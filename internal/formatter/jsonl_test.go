package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLFormatter_Extension(t *testing.T) {
	if ext := NewJSONLFormatter().Extension(); ext != ".jsonl" {
		t.Errorf("Extension() = %q, want .jsonl", ext)
	}
}

func TestJSONLFormatter_OneLinePerValue(t *testing.T) {
	type rec struct {
		Action string `json:"action"`
		Target string `json:"target,omitempty"`
	}
	var buf bytes.Buffer
	if err := NewJSONLFormatter().Format(&buf, rec{"reset", "breaker"}, rec{Action: "unblock"}); err != nil {
		t.Fatalf("Format: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	var got rec
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if got.Action != "unblock" || got.Target != "" {
		t.Errorf("line 2 = %+v", got)
	}
}

func TestJSONLFormatter_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONLFormatter().Format(&buf, map[string]string{"command": "a && b > c"}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "a && b > c") {
		t.Errorf("expected raw shell operators, got %s", buf.String())
	}
}

func TestJSONLFormatter_EncodeError(t *testing.T) {
	var buf bytes.Buffer
	err := NewJSONLFormatter().Format(&buf, map[string]any{"ok": 1}, func() {})
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected error naming line 2, got %v", err)
	}
}
