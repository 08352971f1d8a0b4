// Package config provides 12-factor configuration for the dashboard daemon.
//
// Configuration is loaded from DASH_-prefixed environment variables with
// defaults suitable for a local single-user install. CLI flags in cmd/dashd
// override individual fields for development.
//
// Sections:
//   - Server: HTTP listen address (loopback by default)
//   - Storage: data directory for the cache database and layout snapshot
//   - Cache: resident entry and byte bounds, sweep interval, persistence
//   - Ingest: poll interval clamps, failure backoff, fetch timeout
//   - Layout: snapshot path and checkpoint interval
//   - Plugins: manifest discovery directory (empty disables)
//   - Logging: level and output format
//   - RateLimit: outbound fetch throttling
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
