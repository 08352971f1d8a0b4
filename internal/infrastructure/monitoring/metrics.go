// Package monitoring exposes Prometheus metrics for the dashboard core.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is legal everywhere
// in the daemon; components guard their recording calls so unit tests can
// run without a registry.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Ingest metrics
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	SourcesActive   prometheus.Gauge
	SourcesDegraded prometheus.Gauge

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CachePressure  prometheus.Counter
	CacheEntries   prometheus.Gauge
	CacheBytes     prometheus.Gauge

	// Widget metrics
	WidgetsLive    *prometheus.GaugeVec
	WidgetsCreated prometheus.Counter
	WidgetFaults   prometheus.Counter

	// Event bus metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// Layout metrics
	SnapshotsSaved    prometheus.Counter
	SnapshotsRestored prometheus.Counter
	SnapshotErrors    *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON stats API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	TotalDuration   float64 `json:"-"`
	RequestCount    int64   `json:"-"`
	LiveWidgets     int64   `json:"live_widgets"`
	ActiveSources   int64   `json:"active_sources"`
	DegradedSources int64   `json:"degraded_sources"`
	WSClients       int64   `json:"ws_clients"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashcore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Ingest metrics
		FetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_fetches_total",
				Help: "Total number of source fetches",
			},
			[]string{"kind", "status"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashcore_fetch_duration_seconds",
				Help:    "Source fetch duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		SourcesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_sources_active",
				Help: "Number of tracked data sources",
			},
		),
		SourcesDegraded: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_sources_degraded",
				Help: "Number of degraded data sources",
			},
		),

		// Cache metrics
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		CacheEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
		),
		CachePressure: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_cache_pressure_total",
				Help: "Times an insert exceeded the cache budget with no evictable entry",
			},
		),
		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_cache_entries",
				Help: "Current number of cache entries",
			},
		),
		CacheBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_cache_bytes",
				Help: "Current cache payload bytes (uncompressed)",
			},
		),

		// Widget metrics
		WidgetsLive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashcore_widgets_live",
				Help: "Number of widget instances by state",
			},
			[]string{"state"},
		),
		WidgetsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_widgets_created_total",
				Help: "Total number of widget instances created",
			},
		),
		WidgetFaults: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_widget_faults_total",
				Help: "Total number of isolated widget handler failures",
			},
		),

		// Event bus metrics
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_events_published_total",
				Help: "Total number of events published on the bus",
			},
			[]string{"type"},
		),
		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_events_dropped_total",
				Help: "Events dropped because a subscriber queue overflowed",
			},
		),

		// Layout metrics
		SnapshotsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_snapshots_saved_total",
				Help: "Total number of layout snapshots saved",
			},
		),
		SnapshotsRestored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_snapshots_restored_total",
				Help: "Total number of layout snapshots restored",
			},
		),
		SnapshotErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_snapshot_errors_total",
				Help: "Total number of snapshot operation failures",
			},
			[]string{"op"},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_uptime_seconds",
				Help: "Daemon uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordFetch records one source fetch attempt
func (m *Metrics) RecordFetch(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(kind, status).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetSourcesActive sets the number of tracked sources
func (m *Metrics) SetSourcesActive(count int) {
	if m == nil {
		return
	}
	m.SourcesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSources = int64(count)
	m.mu.Unlock()
}

// SetSourcesDegraded sets the number of degraded sources
func (m *Metrics) SetSourcesDegraded(count int) {
	if m == nil {
		return
	}
	m.SourcesDegraded.Set(float64(count))
	m.mu.Lock()
	m.snapshot.DegradedSources = int64(count)
	m.mu.Unlock()
}

// RecordCacheHit records a cache hit or miss
func (m *Metrics) RecordCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// RecordCacheEviction increments the eviction counter
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

// RecordCachePressure increments the pressure counter
func (m *Metrics) RecordCachePressure() {
	if m == nil {
		return
	}
	m.CachePressure.Inc()
}

// SetCacheOccupancy updates the cache gauges
func (m *Metrics) SetCacheOccupancy(entries int, bytes int64) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(entries))
	m.CacheBytes.Set(float64(bytes))
}

// SetWidgetsLive sets the per-state widget gauge
func (m *Metrics) SetWidgetsLive(state string, count int) {
	if m == nil {
		return
	}
	m.WidgetsLive.WithLabelValues(state).Set(float64(count))
}

// SetLiveWidgetTotal updates the JSON snapshot's widget count
func (m *Metrics) SetLiveWidgetTotal(count int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.snapshot.LiveWidgets = int64(count)
	m.mu.Unlock()
}

// IncWidgetsCreated increments the widget creation counter
func (m *Metrics) IncWidgetsCreated() {
	if m == nil {
		return
	}
	m.WidgetsCreated.Inc()
}

// IncWidgetFaults increments the isolated fault counter
func (m *Metrics) IncWidgetFaults() {
	if m == nil {
		return
	}
	m.WidgetFaults.Inc()
}

// RecordEventPublished records one bus publish
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records one subscriber overflow drop
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// IncSnapshotsSaved increments the snapshots saved counter
func (m *Metrics) IncSnapshotsSaved() {
	if m == nil {
		return
	}
	m.SnapshotsSaved.Inc()
}

// IncSnapshotsRestored increments the snapshots restored counter
func (m *Metrics) IncSnapshotsRestored() {
	if m == nil {
		return
	}
	m.SnapshotsRestored.Inc()
}

// RecordSnapshotError records a save/load/migrate failure
func (m *Metrics) RecordSnapshotError(op string) {
	if m == nil {
		return
	}
	m.SnapshotErrors.WithLabelValues(op).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSClients++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSClients--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON stats API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AverageLatency returns the mean HTTP request duration in seconds
func (m *Metrics) AverageLatency() float64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.RequestCount == 0 {
		return 0
	}
	return m.snapshot.TotalDuration / float64(m.snapshot.RequestCount)
}
