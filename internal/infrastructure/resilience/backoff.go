package resilience

import (
	"math"
	"sync"
	"time"
)

// State represents source health
type State int

const (
	StateHealthy State = iota
	StateBackoff
	StateDegraded
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateBackoff:
		return "backoff"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Settings configures failure tracking behavior
type Settings struct {
	// Factor is the exponential growth factor applied per consecutive failure
	Factor float64
	// Cap bounds the grown interval as a multiple of the base interval
	Cap float64
	// DegradedAfter is the consecutive-failure count that flags the source
	DegradedAfter int
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for one tracked source
type Counts struct {
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Tracker accounts fetch outcomes for one source and derives the effective
// poll interval. Failures stretch the interval; the first success snaps it
// back to base.
type Tracker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
}

// NewTracker creates a failure tracker with the given settings
func NewTracker(name string, settings Settings) *Tracker {
	// Set default values
	if settings.Factor <= 1 {
		settings.Factor = 1.5
	}
	if settings.Cap < 1 {
		settings.Cap = 10
	}
	if settings.DegradedAfter <= 0 {
		settings.DegradedAfter = 3
	}

	return &Tracker{
		name:     name,
		settings: settings,
		state:    StateHealthy,
	}
}

// Name returns the name of the tracked source
func (t *Tracker) Name() string {
	return t.name
}

// State returns the current health state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Counts returns a copy of the internal counts
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}

// Success records a successful fetch. Any failure streak ends and a
// degraded source recovers.
func (t *Tracker) Success() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts.TotalSuccesses++
	t.counts.ConsecutiveSuccesses++
	t.counts.ConsecutiveFailures = 0
	t.setState(StateHealthy)
}

// Failure records a failed fetch and reports whether this failure crossed
// the degraded threshold (exactly once per streak).
func (t *Tracker) Failure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts.TotalFailures++
	t.counts.ConsecutiveFailures++
	t.counts.ConsecutiveSuccesses = 0

	if int(t.counts.ConsecutiveFailures) >= t.settings.DegradedAfter {
		crossed := t.state != StateDegraded
		t.setState(StateDegraded)
		return crossed
	}
	t.setState(StateBackoff)
	return false
}

// NextInterval derives the poll delay after the current failure streak.
// With no failures it returns base unchanged; each failure multiplies by
// Factor, capped at Cap times base. Growth is monotonic up to the cap.
func (t *Tracker) NextInterval(base time.Duration) time.Duration {
	t.mu.Lock()
	failures := t.counts.ConsecutiveFailures
	t.mu.Unlock()

	if failures == 0 {
		return base
	}

	multiplier := math.Pow(t.settings.Factor, float64(failures))
	if multiplier > t.settings.Cap {
		multiplier = t.settings.Cap
	}
	return time.Duration(float64(base) * multiplier)
}

// Reset clears all counts and returns the tracker to healthy
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = Counts{}
	t.setState(StateHealthy)
}

// setState changes the state; callers hold t.mu
func (t *Tracker) setState(state State) {
	if t.state == state {
		return
	}

	prev := t.state
	t.state = state

	if t.settings.OnStateChange != nil {
		t.settings.OnStateChange(t.name, prev, state)
	}
}
