package monitoring

import "time"

// UptimeSeconds reports how long the daemon has been running. Used by the
// JSON stats endpoint; the Prometheus gauge is updated independently.
func (m *Metrics) UptimeSeconds() float64 {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime).Seconds()
}
