/*
Package resilience provides per-source failure tracking for the ingest
pipeline.

# Overview

Each polled data source owns a Tracker that accounts consecutive fetch
failures, grows the effective poll interval exponentially, and flags the
source as degraded once a failure threshold is crossed. Sources keep being
polled while degraded; the flag only tells consumers to render staleness.

# Features

- Three-state health tracking (Healthy, Backoff, Degraded)
- Exponential interval growth with a hard cap
- Recovery on first success with state change callbacks
- Thread-safe operations

# Usage

	tracker := resilience.NewTracker("src_prices", resilience.Settings{
		Factor:        1.5,
		Cap:           10,
		DegradedAfter: 3,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Info("source health changed", zap.String("source", name))
		},
	})

	tracker.Failure()
	next := tracker.NextInterval(30 * time.Second)

# States

	Healthy --[failure]-> Backoff --[threshold]-> Degraded
	   ^                     |                        |
	   +-----[success]-------+------[success]---------+
*/
package resilience
