package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerDefaults(t *testing.T) {
	tr := NewTracker("test-source", Settings{})

	assert.Equal(t, "test-source", tr.Name())
	assert.Equal(t, StateHealthy, tr.State())
	assert.Equal(t, 1.5, tr.settings.Factor)
	assert.Equal(t, float64(10), tr.settings.Cap)
	assert.Equal(t, 3, tr.settings.DegradedAfter)
}

func TestTrackerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		actions  func(tr *Tracker)
		expected State
	}{
		{
			name:     "starts healthy",
			actions:  func(tr *Tracker) {},
			expected: StateHealthy,
		},
		{
			name: "single failure enters backoff",
			actions: func(tr *Tracker) {
				tr.Failure()
			},
			expected: StateBackoff,
		},
		{
			name: "threshold failures degrade",
			actions: func(tr *Tracker) {
				tr.Failure()
				tr.Failure()
				tr.Failure()
			},
			expected: StateDegraded,
		},
		{
			name: "success recovers from backoff",
			actions: func(tr *Tracker) {
				tr.Failure()
				tr.Success()
			},
			expected: StateHealthy,
		},
		{
			name: "success recovers from degraded",
			actions: func(tr *Tracker) {
				tr.Failure()
				tr.Failure()
				tr.Failure()
				tr.Success()
			},
			expected: StateHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker("test", Settings{DegradedAfter: 3})
			tt.actions(tr)
			assert.Equal(t, tt.expected, tr.State())
		})
	}
}

func TestTrackerFailureReturnsCrossing(t *testing.T) {
	tr := NewTracker("test", Settings{DegradedAfter: 3})

	assert.False(t, tr.Failure(), "first failure should not cross")
	assert.False(t, tr.Failure(), "second failure should not cross")
	assert.True(t, tr.Failure(), "third failure should cross the threshold")
	assert.False(t, tr.Failure(), "already degraded, no second crossing")

	tr.Success()
	assert.False(t, tr.Failure(), "streak restarted after success")
}

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker("test", Settings{})

	tr.Failure()
	tr.Failure()
	tr.Success()
	tr.Failure()

	counts := tr.Counts()
	assert.Equal(t, uint32(3), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestTrackerNextInterval(t *testing.T) {
	base := 10 * time.Second
	tr := NewTracker("test", Settings{Factor: 2, Cap: 10, DegradedAfter: 3})

	assert.Equal(t, base, tr.NextInterval(base), "no failures returns base")

	tr.Failure()
	assert.Equal(t, 20*time.Second, tr.NextInterval(base))

	tr.Failure()
	assert.Equal(t, 40*time.Second, tr.NextInterval(base))

	tr.Failure()
	assert.Equal(t, 80*time.Second, tr.NextInterval(base))

	tr.Failure()
	assert.Equal(t, 100*time.Second, tr.NextInterval(base), "capped at 10x base")

	tr.Failure()
	assert.Equal(t, 100*time.Second, tr.NextInterval(base), "stays at cap")

	tr.Success()
	assert.Equal(t, base, tr.NextInterval(base), "success snaps back to base")
}

func TestTrackerIntervalMonotonic(t *testing.T) {
	base := time.Second
	tr := NewTracker("test", Settings{})

	prev := tr.NextInterval(base)
	for i := 0; i < 20; i++ {
		tr.Failure()
		next := tr.NextInterval(base)
		assert.GreaterOrEqual(t, next, prev, "interval must never shrink while failing")
		assert.LessOrEqual(t, next, 10*base, "interval must respect the cap")
		prev = next
	}
}

func TestTrackerStateChangeCallback(t *testing.T) {
	type change struct {
		from State
		to   State
	}
	var changes []change

	tr := NewTracker("test", Settings{
		DegradedAfter: 2,
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "test", name)
			changes = append(changes, change{from, to})
		},
	})

	tr.Failure()
	tr.Failure()
	tr.Success()

	assert.Equal(t, []change{
		{StateHealthy, StateBackoff},
		{StateBackoff, StateDegraded},
		{StateDegraded, StateHealthy},
	}, changes)
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker("test", Settings{DegradedAfter: 2})

	tr.Failure()
	tr.Failure()
	assert.Equal(t, StateDegraded, tr.State())

	tr.Reset()
	assert.Equal(t, StateHealthy, tr.State())
	assert.Equal(t, Counts{}, tr.Counts())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "healthy", StateHealthy.String())
	assert.Equal(t, "backoff", StateBackoff.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker("test", Settings{})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			for j := 0; j < 100; j++ {
				if n%2 == 0 {
					tr.Failure()
				} else {
					tr.Success()
				}
				tr.NextInterval(time.Second)
				tr.State()
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	counts := tr.Counts()
	assert.Equal(t, uint32(500), counts.TotalFailures)
	assert.Equal(t, uint32(500), counts.TotalSuccesses)
}
