// Package types provides shared data structures for the dashboard core.
//
// This package defines the records exchanged between the core components,
// ensuring type safety and one consistent shape on the wire and on disk.
//
// Core Types:
//   - PluginManifest: Declarative plugin identity plus widget factory
//   - WidgetInstance: One live widget created from a manifest
//   - SourceConfig: Declaration of a pollable data source
//   - CacheEntry: One cached fetch result
//   - LayoutSnapshot: Versioned serialization of the widget arrangement
//
// Contracts:
//   - Widget: Capability set every factory-produced widget implements
//   - WidgetContext: Explicit handles handed to factories (no globals)
//
// State Management:
//   - WidgetState: Lifecycle state enum (created ... disposed)
//   - SourceState: Poller health enum (active, backoff, degraded)
//   - Geometry: Dock placement and dimensions
//
// Example Usage:
//
//	manifest := types.PluginManifest{
//	    PluginID:    "clock",
//	    DisplayName: "World Clock",
//	    Factory:     clock.New,
//	}
package types
