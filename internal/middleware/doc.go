// Package middleware carries the HTTP middleware shared by the REST and
// stream surfaces: permissive CORS for the shell webview and a zap-backed
// request logger.
//
// CORS defaults allow any origin. The shell loads from a platform webview
// whose origin varies by host (tauri://localhost, file://, or a dev server
// on http://localhost), and the daemon binds the loopback interface, so a
// fixed origin list would only break local setups.
//
// RequestLogger writes one structured line per completed request through
// the shared zap logger:
//   - 5xx responses log at error
//   - 4xx responses log at warn
//   - everything else logs at debug
//
// Successful requests log at debug because the shell polls status routes
// continuously; at the default info level the stream stays quiet.
//
// Example Usage:
//
//	router := gin.New()
//	router.Use(gin.Recovery())
//	router.Use(middleware.RequestLogger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
package middleware
