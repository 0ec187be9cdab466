package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMatcher_TargetID(t *testing.T) {
	m := Matcher{Patterns: []string{".github/workflows/*", "*.entitlements", "Makefile", ".gatekeeper/*"}}

	tests := []struct {
		path   string
		wantID string
		want   bool
	}{
		{"/repo/.github/workflows/ci.yml", "/repo/.github/workflows/ci.yml", true},
		{".github/workflows/release.yml", ".github/workflows/release.yml", true},
		{"/repo/App/App.entitlements", "/repo/App/App.entitlements", true},
		{"/repo/./Makefile", "/repo/Makefile", true},
		{"/repo/.gatekeeper/config.yaml", "/repo/.gatekeeper/config.yaml", true},
		{"/repo/main.go", "", false},
		{"/repo/.github/CODEOWNERS", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := m.TargetID(tt.path)
		assert.Equal(t, tt.want, ok, "path %q", tt.path)
		assert.Equal(t, tt.wantID, id, "path %q", tt.path)
	}
}

func TestBlockOnceThenAllow(t *testing.T) {
	s := Default()
	const t1 = "/repo/.github/workflows/ci.yml"
	const t2 = "/repo/Makefile"

	// first touch on t1 has no token
	require.False(t, s.Has(t1))
	s.Grant(t1, t0)

	// immediate retry on t1 passes once
	require.True(t, s.Has(t1))
	assert.True(t, s.Consume(t1, t0.Add(time.Second)))
	assert.False(t, s.Has(t1))
	assert.Contains(t, s.Consumed, t1)

	// a different target is gated from scratch
	assert.False(t, s.Has(t2))
	assert.False(t, s.Consume(t2, t0))
}

func TestZeroValueStateIsUsable(t *testing.T) {
	var s State
	assert.False(t, s.Has("x"))
	assert.False(t, s.Consume("x", t0))
	s.Grant("x", t0)
	assert.True(t, s.Has("x"))
}
