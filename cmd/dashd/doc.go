// Package main is the entry point for dashd, the dashboard core daemon.
//
// The daemon owns the headless half of the dashboard: plugin registry,
// widget lifecycle, source polling, the data cache, and layout
// persistence. A shell process renders widgets by talking to the REST
// surface and the /stream WebSocket on the loopback interface.
//
// Configuration:
//   - Environment variables with the DASH_ prefix (12-factor)
//   - CLI flags (override env vars)
//   - Defaults suitable for a local single-user install
//
// Usage:
//
//	# Defaults: 127.0.0.1:8600, data under ~/.inthisone/dashcore
//	./dashd
//
//	# Development mode (colored console logs, debug level)
//	./dashd -dev -plugin-dir ./plugins
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown with a final layout checkpoint
package main
