package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNext_ThirdEditReplans(t *testing.T) {
	s := Default()
	limit := s.Limit(0)
	require.Equal(t, DefaultMax, limit)

	var outcomes []Outcome
	for i := 0; i < 3; i++ {
		o := s.Next(limit)
		outcomes = append(outcomes, o)
		if o != OutcomeReplan {
			s.Increment("main.go", t0, limit)
		}
	}
	assert.Equal(t, []Outcome{OutcomeAllow, OutcomeWarn, OutcomeReplan}, outcomes)
	assert.Equal(t, 2, s.Count)
}

func TestNext_LargerLimit(t *testing.T) {
	s := Default()
	for i := 0; i < 3; i++ {
		assert.Equal(t, OutcomeAllow, s.Next(5), "edit %d", i+1)
		s.Increment("a.go", t0, 5)
	}
	assert.Equal(t, OutcomeWarn, s.Next(5))
	assert.Equal(t, 1, s.Remaining(5))
	s.Increment("a.go", t0, 5)
	assert.Equal(t, OutcomeReplan, s.Next(5))
	assert.Equal(t, 0, s.Remaining(5))
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 7, State{Max: 4}.Limit(7))
	assert.Equal(t, 4, State{Max: 4}.Limit(0))
	assert.Equal(t, DefaultMax, State{}.Limit(0))
}

func TestClear(t *testing.T) {
	s := Default()
	s.Increment("x.go", t0, 3)
	s.Clear()
	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.LastAt)
	assert.Equal(t, 3, s.Max)
}

func TestPlanning_ReplanRevokesApproval(t *testing.T) {
	p := DefaultPlanning()
	p.Approve("alice", t0)
	require.True(t, p.PlanApproved)

	p.Replan(t0.Add(time.Minute))
	assert.False(t, p.PlanApproved)
	assert.Empty(t, p.ApprovedBy)
	assert.Equal(t, 1, p.ReplanCount)
	require.NotNil(t, p.LastReplanAt)

	p.Replan(t0.Add(2 * time.Minute))
	assert.Equal(t, 2, p.ReplanCount)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "allow", OutcomeAllow.String())
	assert.Equal(t, "warn", OutcomeWarn.String())
	assert.Equal(t, "replan", OutcomeReplan.String())
}
