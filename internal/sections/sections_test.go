package sections

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestHistory_AppendCaps(t *testing.T) {
	h := DefaultHistory()
	for i := 0; i < HistoryCap+7; i++ {
		h.Append(ActionRecord{Tool: "Bash", Success: true, At: t0.Add(time.Duration(i) * time.Second)})
	}
	assert.Len(t, h.Actions, HistoryCap)
	assert.Equal(t, t0.Add(7*time.Second), h.Actions[0].At)
}

func TestHistory_FailureRate(t *testing.T) {
	h := DefaultHistory()
	assert.Equal(t, 0.0, h.FailureRate(10))

	for i := 0; i < 5; i++ {
		h.Append(ActionRecord{Success: true})
	}
	for i := 0; i < 8; i++ {
		h.Append(ActionRecord{Success: false})
	}
	// last 10: 2 successes, 8 failures
	assert.InDelta(t, 0.8, h.FailureRate(10), 1e-9)
	assert.InDelta(t, 8.0/50.0, h.FailureRate(50), 1e-9)
	assert.Equal(t, 0.0, h.FailureRate(0))
}

func TestHistory_FailureRateShortHistory(t *testing.T) {
	h := DefaultHistory()
	h.Append(ActionRecord{Success: false})
	assert.InDelta(t, 0.1, h.FailureRate(10), 1e-9, "one failure is one of ten")

	h.Append(ActionRecord{Success: true})
	assert.InDelta(t, 0.1, h.FailureRate(10), 1e-9)

	h = DefaultHistory()
	for i := 0; i < 7; i++ {
		h.Append(ActionRecord{Success: false})
	}
	assert.InDelta(t, 0.7, h.FailureRate(10), 1e-9, "seven failures reach the rate even before ten actions")
}

func TestPatterns_Observe(t *testing.T) {
	var p PatternState
	p.Observe("rapid_completion", t0)
	p.Observe("rapid_completion", t0.Add(time.Hour))
	assert.Equal(t, 2, p.Counts["rapid_completion"])
	assert.Equal(t, t0.Add(time.Hour), p.LastSeen["rapid_completion"])
}

func TestNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, n := range Names {
		assert.False(t, seen[n], "duplicate section %s", n)
		seen[n] = true
	}
	assert.Len(t, Names, 11)
}
