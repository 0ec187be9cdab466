// Package audit keeps the append-only, hash-chained log of operator
// overrides (resets, unblocks, skips, plan approvals).
//
// Each record carries the hash of its predecessor, so editing or deleting
// any line breaks verification from that line on.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/boshu2/gatekeeper/internal/state"
)

const (
	schemaVersion = 1

	// LockTimeout bounds the wait for the ledger lock.
	LockTimeout = state.DefaultLockTimeout

	// FileName is the ledger file inside the state directory.
	FileName = "audit.jsonl"
)

// Record is a single append-only override event.
type Record struct {
	SchemaVersion int             `json:"schema_version"`
	EventID       string          `json:"event_id"`
	TS            string          `json:"ts"`
	Action        string          `json:"action"`
	Target        string          `json:"target,omitempty"`
	Operator      string          `json:"operator"`
	Reason        string          `json:"reason,omitempty"`
	PriorReason   string          `json:"prior_reason,omitempty"`
	Details       json.RawMessage `json:"details"`
	PrevHash      string          `json:"prev_hash"`
	PayloadHash   string          `json:"payload_hash"`
	Hash          string          `json:"hash"`
}

// Entry contains the fields needed to append an event.
type Entry struct {
	Action      string
	Target      string
	Operator    string
	Reason      string
	PriorReason string
	Details     any
}

// VerifyResult is the machine-readable verify output.
type VerifyResult struct {
	Pass             bool   `json:"pass"`
	RecordCount      int    `json:"record_count"`
	FirstBrokenIndex int    `json:"first_broken_index"`
	Message          string `json:"message,omitempty"`
}

type payload struct {
	SchemaVersion int             `json:"schema_version"`
	EventID       string          `json:"event_id"`
	TS            string          `json:"ts"`
	Action        string          `json:"action"`
	Target        string          `json:"target,omitempty"`
	Operator      string          `json:"operator"`
	Reason        string          `json:"reason,omitempty"`
	PriorReason   string          `json:"prior_reason,omitempty"`
	Details       json.RawMessage `json:"details"`
	PrevHash      string          `json:"prev_hash"`
}

// Path returns the ledger path for a state directory.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Append appends one event with lock + fsync durability. The ledger lock
// is polled up to LockTimeout; a wedged holder fails the append.
func Append(ctx context.Context, stateDir string, entry Entry, now time.Time) (Record, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return Record{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.Operator) == "" {
		return Record{}, fmt.Errorf("operator is required")
	}

	ledgerPath := Path(stateDir)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return Record{}, fmt.Errorf("create ledger dir: %w", err)
	}

	lock, err := state.Lock(ctx, ledgerPath+".lock", LockTimeout)
	if err != nil {
		return Record{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	ledgerFile, err := os.OpenFile(ledgerPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return Record{}, fmt.Errorf("open ledger: %w", err)
	}
	defer ledgerFile.Close()

	prevHash, err := readLastHash(ledgerFile)
	if err != nil {
		return Record{}, err
	}

	details, err := normalizeDetails(entry.Details)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		SchemaVersion: schemaVersion,
		EventID:       uuid.NewString(),
		TS:            now.UTC().Format(time.RFC3339Nano),
		Action:        entry.Action,
		Target:        entry.Target,
		Operator:      entry.Operator,
		Reason:        entry.Reason,
		PriorReason:   entry.PriorReason,
		Details:       details,
		PrevHash:      prevHash,
	}

	payloadHash, hashValue, err := computeHashes(record)
	if err != nil {
		return Record{}, err
	}
	record.PayloadHash = payloadHash
	record.Hash = hashValue

	line, err := json.Marshal(record)
	if err != nil {
		return Record{}, fmt.Errorf("marshal ledger record: %w", err)
	}

	if _, err := ledgerFile.Seek(0, io.SeekEnd); err != nil {
		return Record{}, fmt.Errorf("seek ledger end: %w", err)
	}
	if _, err := ledgerFile.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("append ledger record: %w", err)
	}
	if err := ledgerFile.Sync(); err != nil {
		return Record{}, fmt.Errorf("fsync ledger: %w", err)
	}
	if err := syncDirectory(stateDir); err != nil {
		return Record{}, err
	}

	return record, nil
}

// Load loads all ledger events in append order. A missing ledger is empty.
func Load(stateDir string) ([]Record, error) {
	file, err := os.Open(Path(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decode ledger line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return records, nil
}

// Verify checks hashes and prev-hash links and reports the first broken
// record (1-based) without failing the call for chain mismatches.
func Verify(records []Record) VerifyResult {
	result := VerifyResult{
		Pass:             true,
		RecordCount:      len(records),
		FirstBrokenIndex: -1,
	}

	prevHash := ""
	for i, record := range records {
		if msg := checkRecord(record, prevHash); msg != "" {
			result.Pass = false
			result.FirstBrokenIndex = i + 1
			result.Message = msg
			return result
		}
		prevHash = record.Hash
	}
	return result
}

func checkRecord(record Record, prevHash string) string {
	if err := validateRecord(record); err != nil {
		return err.Error()
	}
	if record.PrevHash != prevHash {
		return fmt.Sprintf("prev_hash mismatch: got %q want %q", record.PrevHash, prevHash)
	}
	payloadHash, hashValue, err := computeHashes(record)
	if err != nil {
		return err.Error()
	}
	if record.PayloadHash != payloadHash {
		return "payload_hash mismatch"
	}
	if record.Hash != hashValue {
		return "hash mismatch"
	}
	return ""
}

func readLastHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek ledger start: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lastHash := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return "", fmt.Errorf("decode existing ledger record: %w", err)
		}
		lastHash = record.Hash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan ledger: %w", err)
	}
	return lastHash, nil
}

func validateRecord(record Record) error {
	if record.SchemaVersion != schemaVersion {
		return fmt.Errorf("schema_version mismatch: got %d want %d", record.SchemaVersion, schemaVersion)
	}
	if _, err := uuid.Parse(record.EventID); err != nil {
		return fmt.Errorf("invalid event_id: %w", err)
	}
	if strings.TrimSpace(record.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(record.Operator) == "" {
		return fmt.Errorf("operator is required")
	}
	t, err := time.Parse(time.RFC3339Nano, record.TS)
	if err != nil {
		return fmt.Errorf("invalid ts: %w", err)
	}
	if t.UTC().Format(time.RFC3339Nano) != record.TS {
		return fmt.Errorf("ts must be UTC RFC3339Nano")
	}
	if strings.TrimSpace(record.PayloadHash) == "" {
		return fmt.Errorf("payload_hash is required")
	}
	if strings.TrimSpace(record.Hash) == "" {
		return fmt.Errorf("hash is required")
	}
	return nil
}

func computeHashes(record Record) (payloadHash string, hashValue string, err error) {
	details, err := normalizeDetails(record.Details)
	if err != nil {
		return "", "", err
	}
	p := payload{
		SchemaVersion: record.SchemaVersion,
		EventID:       record.EventID,
		TS:            record.TS,
		Action:        record.Action,
		Target:        record.Target,
		Operator:      record.Operator,
		Reason:        record.Reason,
		PriorReason:   record.PriorReason,
		Details:       details,
		PrevHash:      record.PrevHash,
	}
	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return "", "", fmt.Errorf("marshal payload: %w", err)
	}
	payloadHash = hashHex(payloadBytes)
	hashValue = hashHex([]byte(payloadHash + "\n" + record.PrevHash))
	return payloadHash, hashValue, nil
}

// normalizeDetails re-encodes details so equal JSON hashes equally.
func normalizeDetails(details any) (json.RawMessage, error) {
	if details == nil {
		return json.RawMessage("{}"), nil
	}

	var encoded []byte
	switch v := details.(type) {
	case json.RawMessage:
		encoded = v
	case []byte:
		encoded = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal details: %w", err)
		}
		encoded = b
	}
	if len(bytes.TrimSpace(encoded)) == 0 {
		return json.RawMessage("{}"), nil
	}

	var parsed any
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		return nil, fmt.Errorf("details must be valid JSON: %w", err)
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	return json.RawMessage(normalized), nil
}

func syncDirectory(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory for fsync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return fmt.Errorf("fsync directory: %w", err)
	}
	return nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
