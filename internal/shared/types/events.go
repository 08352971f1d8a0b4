package types

import "time"

// Bus topics. Ingest events publish on the source's own ID; the constants
// below cover everything else. TopicAll receives every event and feeds the
// shell stream.
const (
	TopicAll     = "*"
	TopicCache   = "cache"
	TopicWidgets = "widgets"
)

// DataChanged announces a fresh payload for a source. The payload itself
// stays in the cache; consumers look it up by source ID, which keeps the
// event small for multi-subscriber sources.
type DataChanged struct {
	SourceID  string    `json:"source_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SourceHealth announces a poller state transition (backoff, degraded,
// recovery) so consumers can render staleness instead of going silent.
type SourceHealth struct {
	SourceID string      `json:"source_id"`
	State    SourceState `json:"state"`
	Failures int         `json:"failures"`
	Error    string      `json:"error,omitempty"`
}

// CachePressure is surfaced when an insertion exceeds the cache budget and
// no entry is eligible for eviction.
type CachePressure struct {
	Entries     int   `json:"entries"`
	Bytes       int64 `json:"bytes"`
	EntryBudget int   `json:"entry_budget"`
	ByteBudget  int64 `json:"byte_budget"`
}

// WidgetStatus reports a per-widget fault or state change without
// affecting sibling widgets.
type WidgetStatus struct {
	InstanceID string      `json:"instance_id"`
	State      WidgetState `json:"state"`
	Error      string      `json:"error,omitempty"`
}
