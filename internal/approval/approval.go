// Package approval implements block-once-then-allow confirmation for
// high-blast-radius targets.
//
// The first gated action on a sensitive target is blocked and leaves a
// pending token for that exact target. The next action on the same target
// consumes the token and passes. A consumed token does not carry over: the
// touch after that is gated again.
package approval

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// State is the persisted approvals section.
type State struct {
	Pending  map[string]time.Time `json:"pending"`
	Consumed map[string]time.Time `json:"consumed"`
}

// Default returns a state with no tokens.
func Default() State {
	return State{Pending: map[string]time.Time{}, Consumed: map[string]time.Time{}}
}

func (s *State) init() {
	if s.Pending == nil {
		s.Pending = map[string]time.Time{}
	}
	if s.Consumed == nil {
		s.Consumed = map[string]time.Time{}
	}
}

// Has reports whether target holds an unconsumed token.
func (s State) Has(target string) bool {
	_, ok := s.Pending[target]
	return ok
}

// Grant records a pending token for target.
func (s *State) Grant(target string, now time.Time) {
	s.init()
	s.Pending[target] = now.UTC()
}

// Consume spends the token for target. It returns false when there was none.
func (s *State) Consume(target string, now time.Time) bool {
	s.init()
	if _, ok := s.Pending[target]; !ok {
		return false
	}
	delete(s.Pending, target)
	s.Consumed[target] = now.UTC()
	return true
}

// Matcher identifies sensitive targets from glob patterns.
//
// A pattern without a slash is matched against the base name; a pattern
// with one is matched against the slash-separated path and every suffix of
// it, so ".github/workflows/*" matches "/repo/.github/workflows/ci.yml".
type Matcher struct {
	Patterns []string
}

// TargetID returns the canonical target ID for p and whether p is
// sensitive. The ID is the cleaned slash-separated path.
func (m Matcher) TargetID(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	base := path.Base(clean)
	for _, pattern := range m.Patterns {
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, base); ok {
				return clean, true
			}
			continue
		}
		if matchSuffix(pattern, clean) {
			return clean, true
		}
	}
	return "", false
}

func matchSuffix(pattern, p string) bool {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i := range parts {
		if ok, _ := path.Match(pattern, strings.Join(parts[i:], "/")); ok {
			return true
		}
	}
	return false
}
