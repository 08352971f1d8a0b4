package types

import (
	"context"

	"go.uber.org/zap"
)

// Widget is the capability set every factory-produced widget implements.
// Implementations are driven from the lifecycle manager's coordinating
// path; Refresh may additionally be invoked from event delivery and must
// tolerate that.
type Widget interface {
	// Refresh recomputes the widget's presentation. sourceID names the
	// data source whose change triggered the refresh; it is empty for
	// manual or full refreshes.
	Refresh(ctx context.Context, sourceID string) error

	// SerializeState returns the widget's private state as a blob of
	// reconstructible descriptors. It must not capture live handles.
	SerializeState() ([]byte, error)

	// RestoreState rebuilds the widget from a previously serialized blob,
	// re-declaring any data sources through the context's binder.
	RestoreState(state []byte) error

	// Dispose releases widget-held resources. Called exactly once.
	Dispose() error
}

// DataReader is the read-only cache view handed to widget factories
type DataReader interface {
	Lookup(sourceID string) (CacheEntry, bool)
}

// SourceBinder lets a widget declare the data sources it consumes.
// Declarations made during construction or state restore are collected and
// registered by the lifecycle manager once the instance exists, keeping
// reference counts balanced with the widget's lifetime.
type SourceBinder interface {
	Bind(cfg SourceConfig) (string, error)
}

// WidgetContext carries the explicit handles a factory receives. Widgets
// hold no ambient globals; everything they touch arrives here.
type WidgetContext struct {
	Data    DataReader
	Sources SourceBinder
	Log     *zap.Logger
}

// WidgetFactory produces one widget instance from its context
type WidgetFactory func(ctx WidgetContext) (Widget, error)

// PluginManifest describes a plugin's identity and factory capability.
// Immutable once registered; the registry enforces unique plugin IDs.
type PluginManifest struct {
	PluginID    string        `json:"plugin_id"`
	DisplayName string        `json:"display_name"`
	Description string        `json:"description"`
	Factory     WidgetFactory `json:"-"`
}
