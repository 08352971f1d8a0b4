// Package http provides the REST surface of the dashboard daemon.
//
// All endpoints are implemented with the Gin framework. The shell talks to
// this API for everything except the live event stream, which lives in the
// ws package.
//
// Endpoints:
//   - Health: / and /health
//   - Plugins: /plugins, /plugins/discover
//   - Widgets: /widgets, /widgets/:id, /widgets/:id/subscribe,
//     /widgets/:id/suspend, /widgets/:id/resume, /widgets/:id/geometry,
//     /widgets/refresh
//   - Sources: /sources, /sources/:id/refresh
//   - Cache: /cache/:source
//   - Layout: /layout/save, /layout/restore
//   - Stats: /stats
//
// Domain sentinel errors map onto HTTP status codes in one place
// (statusFor), so a disposed widget is always 409 and an unknown plugin
// always 404, whichever endpoint surfaced it.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Options{
//		Plugins: reg,
//		Widgets: widgets,
//		Sources: sources,
//		Data:    data,
//		Layout:  store,
//	})
//	router.GET("/health", handlers.Health)
//	router.POST("/widgets", handlers.CreateWidget)
package http
