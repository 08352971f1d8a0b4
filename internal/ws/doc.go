// Package ws provides the WebSocket event stream for the shell.
//
// Every connection gets one wildcard subscription to the event bus, so data
// changes, source health transitions, widget status updates, and cache
// pressure warnings all arrive on a single socket. Inbound frames carry the
// two things a shell pushes back: geometry changes and refresh requests.
//
// Message Types (Client → Server):
//   - geometry: Record a widget placement change
//   - refresh: Force-refresh every widget and nudge all pollers
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established banner (carries a conn_id)
//   - data_changed: A source produced a new payload
//   - source_health: A source changed poll state
//   - widget_status: A widget changed lifecycle state or faulted
//   - cache_pressure: The cache is over budget with nothing evictable
//   - geometry_ack / refreshed / pong: Replies to inbound frames
//   - error: A frame could not be handled
//
// A connection that stops reading loses its oldest queued events instead of
// stalling publishers; the socket itself stays up.
//
// Example Usage:
//
//	handler := ws.NewHandler(bus, widgets, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
