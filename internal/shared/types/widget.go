package types

import (
	"encoding/json"
	"time"
)

// WidgetState represents widget lifecycle states
type WidgetState string

const (
	WidgetCreated   WidgetState = "created"
	WidgetBound     WidgetState = "bound"
	WidgetActive    WidgetState = "active"
	WidgetSuspended WidgetState = "suspended"
	WidgetDisposed  WidgetState = "disposed" // terminal
)

// DockArea identifies the dock a widget is placed in
type DockArea string

const (
	DockLeft   DockArea = "left"
	DockRight  DockArea = "right"
	DockTop    DockArea = "top"
	DockBottom DockArea = "bottom"
)

// Geometry represents widget placement within the shell
type Geometry struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	DockArea DockArea `json:"dock_area"`
	Floating bool     `json:"floating"`
	Visible  bool     `json:"visible"`
}

// WidgetInstance represents one live widget created from a plugin manifest
type WidgetInstance struct {
	ID            string      `json:"id"`
	PluginID      string      `json:"plugin_id"`
	Title         string      `json:"title"`
	State         WidgetState `json:"state"`
	Geometry      Geometry    `json:"geometry"`
	Subscriptions []string    `json:"subscriptions"` // source IDs, first-subscribe order
	CreatedAt     time.Time   `json:"created_at"`

	// PrivateState is the widget-owned opaque blob. It is filled only when
	// the instance is captured for persistence, never on live reads.
	PrivateState json.RawMessage `json:"private_state,omitempty"`
}

// WidgetStats contains lifecycle manager statistics
type WidgetStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Suspended int `json:"suspended"`
	Disposed  int `json:"disposed"`
}
