package state

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 16

// generatedSecretLength is the size of a secret created by LoadSecret.
const generatedSecretLength = 32

// Envelope is the on-disk form of one section.
type Envelope struct {
	Section   string          `json:"section"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
	Signature string          `json:"signature"`
}

// Signer seals and verifies section payloads with HMAC-SHA256.
// The key lives in a memguard enclave and is only decrypted while a MAC
// is being computed.
type Signer struct {
	key *memguard.Enclave
}

// NewSigner creates a signer for secret. The caller's slice is not modified.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	buf := make([]byte, len(secret))
	copy(buf, secret)
	return &Signer{key: memguard.NewEnclave(buf)}, nil
}

// Seal encodes payload into a signed envelope, newline-terminated.
func (s *Signer) Seal(section string, payload any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", section, err)
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	sig, err := s.mac(section, ts, canonical)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(Envelope{
		Section:   section,
		Payload:   canonical,
		Timestamp: ts,
		Signature: sig,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", section, err)
	}
	return append(data, '\n'), nil
}

// Open verifies data as the envelope for section and returns its payload.
// Any deviation from the exact bytes Seal would have produced is ErrTampered.
func (s *Signer) Open(section string, data []byte) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTampered, err)
	}
	if env.Section != section {
		return nil, fmt.Errorf("%w: section %q stored under %q", ErrTampered, env.Section, section)
	}
	if len(env.Payload) == 0 || env.Timestamp == "" || env.Signature == "" {
		return nil, fmt.Errorf("%w: incomplete envelope", ErrTampered)
	}
	canonical, err := canonicalize(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTampered, err)
	}

	// encoding/json is lenient (case-insensitive keys, duplicate keys,
	// replacement of invalid UTF-8), so require a byte-exact re-encoding.
	reencoded, err := json.Marshal(Envelope{
		Section:   env.Section,
		Payload:   canonical,
		Timestamp: env.Timestamp,
		Signature: env.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	if !bytes.Equal(append(reencoded, '\n'), data) {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrTampered)
	}

	want, err := s.mac(section, env.Timestamp, canonical)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(want), []byte(env.Signature)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrTampered)
	}
	return canonical, nil
}

func (s *Signer) mac(section, timestamp string, payload []byte) (string, error) {
	lb, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("open signing key: %w", err)
	}
	defer lb.Destroy()

	m := hmac.New(sha256.New, lb.Bytes())
	m.Write([]byte(section))
	m.Write([]byte{'\n'})
	m.Write([]byte(timestamp))
	m.Write([]byte{'\n'})
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil)), nil
}

func canonicalize(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadSecret returns the signing secret. envValue wins when non-empty;
// otherwise the secret is read from path, and created with random bytes
// (mode 0600) when the file does not exist yet.
func LoadSecret(envValue, path string) ([]byte, error) {
	if v := strings.TrimSpace(envValue); v != "" {
		return []byte(v), nil
	}
	if path == "" {
		return nil, fmt.Errorf("no secret configured")
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return decodeSecretFile(data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create secret dir: %w", err)
	}
	secret := make([]byte, generatedSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if errors.Is(err, os.ErrExist) {
		// Another invocation created it first.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read secret: %w", err)
		}
		return decodeSecretFile(data)
	}
	if err != nil {
		return nil, fmt.Errorf("create secret: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(secret) + "\n"); err != nil {
		return nil, fmt.Errorf("write secret: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync secret: %w", err)
	}
	return secret, nil
}

func decodeSecretFile(data []byte) ([]byte, error) {
	text := strings.TrimSpace(string(data))
	if decoded, err := hex.DecodeString(text); err == nil && len(decoded) >= MinSecretLength {
		return decoded, nil
	}
	if len(text) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	return []byte(text), nil
}
