package types

import "encoding/json"

// SnapshotVersion is the current layout snapshot schema version
const SnapshotVersion = 2

// SnapshotEntry is one widget's persisted record
type SnapshotEntry struct {
	InstanceID   string          `json:"instance_id"`
	PluginID     string          `json:"plugin_id"`
	Title        string          `json:"title"`
	Geometry     Geometry        `json:"geometry"`
	PrivateState json.RawMessage `json:"private_state,omitempty"`
}

// LayoutSnapshot is the durable record of the widget arrangement. Source
// declarations are not persisted directly; each widget reconstructs its
// subscriptions from its own private state on restore.
type LayoutSnapshot struct {
	Version int             `json:"version"`
	Widgets []SnapshotEntry `json:"widgets"`
}

// EmptySnapshot returns the default snapshot for a fresh install
func EmptySnapshot() LayoutSnapshot {
	return LayoutSnapshot{Version: SnapshotVersion, Widgets: []SnapshotEntry{}}
}
