// Package widget manages the lifecycle of live widget instances.
//
// An instance is created from a registered plugin manifest and walks the
// states Created, Bound, Active, Suspended and Disposed. Disposed is
// terminal: every later operation on that instance reports
// ErrAlreadyDisposed. Binding with zero data sources is legal (a clock needs
// none), so an instance without subscriptions rests at Bound and moves to
// Active on its first subscription.
//
// Factories receive their dependencies explicitly through
// types.WidgetContext: a read handle on the cache, a binder for declaring
// data sources, and a logger. Source declarations made while the factory or
// RestoreState runs are collected and attached to the instance once it
// exists, one ingest reference per distinct source, released again on
// Dispose.
//
// Data flows in from the event bus. The manager drains a wildcard
// subscription on its own goroutine and calls Refresh on every instance
// subscribed to the changed source. A refresh that fails or panics is
// caught, logged and reported as a widget_status event without touching
// sibling instances, and never disposes the faulting widget. Suspended
// instances keep their subscriptions warm but skip refreshes until resumed.
//
// Example Usage:
//
//	mgr := widget.New(widget.Options{
//		Registry: reg,
//		Sources:  ingestMgr,
//		Data:     dataCache,
//		Bus:      bus,
//		Logger:   logger,
//	})
//	inst, err := mgr.Create("clock", types.Geometry{DockArea: types.DockRight, Visible: true})
//	// ... later, when the shell closes the widget:
//	mgr.Dispose(inst.ID)
package widget
