package formatter

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLFormatter writes one JSON object per line.
type JSONLFormatter struct {
	// Pretty enables indented JSON (not recommended for JSONL).
	Pretty bool
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// Format writes each value as its own line.
func (jf *JSONLFormatter) Format(w io.Writer, values ...any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false) // commands and paths contain < > &
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	for i, v := range values {
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("encode line %d: %w", i+1, err)
		}
	}
	return nil
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}
