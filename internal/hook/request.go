// Package hook reads the agent host's hook envelopes and maps them onto
// gated actions and post-action outcomes.
//
// One JSON document arrives on stdin per invocation. The decision goes back
// through the process exit status only; human-readable diagnostics go to
// stderr.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBytes caps how much of stdin is read.
const MaxRequestBytes = 4 << 20

// Hook event names.
const (
	EventPreToolUse   = "PreToolUse"
	EventPostToolUse  = "PostToolUse"
	EventSessionStart = "SessionStart"
)

// ErrMalformedRequest is returned for envelopes that cannot be parsed or
// fail validation. Callers fail open on it.
var ErrMalformedRequest = errors.New("malformed hook request")

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
}

// ToolInput holds the tool parameters gatekeeper inspects. Unknown fields
// are ignored.
type ToolInput struct {
	FilePath     string `json:"file_path,omitempty"`
	Path         string `json:"path,omitempty"`
	NotebookPath string `json:"notebook_path,omitempty"`
	Command      string `json:"command,omitempty"`
	URL          string `json:"url,omitempty"`
	Query        string `json:"query,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Content      string `json:"content,omitempty"`
	NewString    string `json:"new_string,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
}

// Request is one hook envelope.
type Request struct {
	SessionID     string          `json:"session_id"`
	HookEventName string          `json:"hook_event_name"`
	ToolName      string          `json:"tool_name" validate:"required,max=256"`
	ToolInput     ToolInput       `json:"tool_input"`
	ToolResponse  json.RawMessage `json:"tool_response,omitempty"`
	Cwd           string          `json:"cwd"`
}

// Validate checks the envelope's validator tags.
func (r *Request) Validate() error {
	return requestValidate.Struct(r)
}

// ReadRequest decodes and validates one envelope from r. Any failure wraps
// ErrMalformedRequest.
func ReadRequest(r io.Reader) (Request, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRequestBytes+1))
	if err != nil {
		return Request{}, fmt.Errorf("%w: read: %v", ErrMalformedRequest, err)
	}
	if len(data) > MaxRequestBytes {
		return Request{}, fmt.Errorf("%w: exceeds %d bytes", ErrMalformedRequest, MaxRequestBytes)
	}
	if strings.TrimSpace(string(data)) == "" {
		return Request{}, fmt.Errorf("%w: empty input", ErrMalformedRequest)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req, nil
}

// ReadSession decodes a SessionStart envelope, which carries no tool.
func ReadSession(r io.Reader) (Request, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRequestBytes))
	if err != nil {
		return Request{}, fmt.Errorf("%w: read: %v", ErrMalformedRequest, err)
	}
	var req Request
	if len(strings.TrimSpace(string(data))) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req, nil
}
