// Package state persists gatekeeper sections as signed JSON documents, one
// file per section, shared between short-lived hook invocations.
//
// Reads verify the envelope and never take a lock; atomic rename guarantees
// a reader sees either the previous or the next complete document. Every
// read-modify-write holds an exclusive flock scoped to its section, so
// different sections never contend.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultLockTimeout bounds how long Update waits for a section lock.
const DefaultLockTimeout = 2 * time.Second

// maxSectionBytes caps how much of a section file is read.
const maxSectionBytes = 4 << 20

var sectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Section is a typed handle to one named partition of the store.
type Section[T any] struct {
	// Name is the file stem (e.g. "circuit_breaker").
	Name string

	// Default builds the value used when the section is absent or fails verification.
	Default func() T
}

// Store is a directory of signed section documents.
type Store struct {
	dir         string
	signer      *Signer
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	writeFile   func(path string, data []byte) error
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the bounded lock wait.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore opens (creating if needed) the state directory.
func NewStore(dir string, signer *Signer, opts ...Option) (*Store, error) {
	if signer == nil {
		return nil, fmt.Errorf("state store requires a signer")
	}
	s := &Store{
		dir:         dir,
		signer:      signer,
		lockTimeout: DefaultLockTimeout,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		writeFile:   atomicWrite,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return s, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the document path for a section name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lockPath(name string) string {
	return filepath.Join(s.dir, name+".lock")
}

// Get returns the verified value of sec, or its default when the document
// is absent, unreadable, or fails verification.
func Get[T any](s *Store, sec Section[T]) T {
	v, _ := load(s, sec)
	return v
}

// load returns the section value and whether a verified document backed it.
func load[T any](s *Store, sec Section[T]) (T, bool) {
	if !sectionNameRe.MatchString(sec.Name) {
		s.logger.Error("invalid section name", "section", sec.Name)
		return sec.Default(), false
	}
	raw, err := s.readVerified(sec.Name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("section treated as absent", "section", sec.Name, "error", err)
		}
		return sec.Default(), false
	}
	v := sec.Default()
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("section payload does not match schema", "section", sec.Name, "error", err)
		return sec.Default(), false
	}
	return v, true
}

// Exists reports whether sec has a verified document on disk.
func Exists[T any](s *Store, sec Section[T]) bool {
	_, ok := load(s, sec)
	return ok
}

// Update runs fn on the current value of sec inside the section's exclusive
// lock and persists the result signed. If fn returns an error nothing is
// written. On lock timeout the current verified value is returned with
// ErrLockTimeout and no mutation happens.
func Update[T any](ctx context.Context, s *Store, sec Section[T], fn func(*T) error) (T, error) {
	if !sectionNameRe.MatchString(sec.Name) {
		return sec.Default(), fmt.Errorf("%w: %q", ErrInvalidSectionName, sec.Name)
	}

	lock, err := acquire(ctx, s.lockPath(sec.Name), s.lockTimeout)
	if err != nil {
		s.logger.Warn("section unavailable", "section", sec.Name, "error", err)
		return Get(s, sec), err
	}
	defer func() {
		if err := lock.release(); err != nil {
			s.logger.Warn("release section lock", "section", sec.Name, "error", err)
		}
	}()

	v := Get(s, sec)
	if err := fn(&v); err != nil {
		return v, err
	}

	if err := s.write(sec.Name, v); err != nil {
		s.logger.Warn("state write failed, retrying", "section", sec.Name, "error", err)
		if err := s.write(sec.Name, v); err != nil {
			s.logger.Error("state write failed", "section", sec.Name, "error", err)
			return v, fmt.Errorf("%w: %s: %v", ErrWriteFailed, sec.Name, err)
		}
	}
	return v, nil
}

// Reset writes the signed default value of sec.
func Reset[T any](ctx context.Context, s *Store, sec Section[T]) (T, error) {
	return Update(ctx, s, sec, func(v *T) error {
		*v = sec.Default()
		return nil
	})
}

func (s *Store) readVerified(name string) (json.RawMessage, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSectionBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read section: %w", err)
	}
	if len(data) > maxSectionBytes {
		return nil, fmt.Errorf("%w: section exceeds %d bytes", ErrTampered, maxSectionBytes)
	}
	return s.signer.Open(name, data)
}

func (s *Store) write(name string, v any) error {
	data, err := s.signer.Seal(name, v, s.now())
	if err != nil {
		return err
	}
	return s.writeFile(s.Path(name), data)
}

// atomicWrite writes to a temp file and renames atomically.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}
