// Package plugins ships the built-in widget set and the declarative factory
// behind discovered third-party manifests.
//
// Every built-in is headless: a factory plus a private state blob, no
// rendering. The factory produces the widget with defaults, RestoreState
// re-declares its data sources through the binder, and Refresh derives the
// presentation model from whatever the cache currently holds. Between them
// the set exercises every source kind:
//
//   - clock: zero sources, wall-clock faces for a list of IANA zones
//   - rest-table: one rest_api source, columns and rows from parsed JSON
//   - stats: zero sources, gonum descriptive digest of a numeric series
//   - file-viewer: one file source, tail of the parsed text
//   - pdf-viewer: one pdf source, extracted text pages
//   - scrape-panel: one html source with a CSS selector hint
//
// Single-source widgets learn their source ID lazily. A binding made during
// state restore records it directly; a subscription attached from outside
// reaches the widget as the trigger of the next refresh and is adopted then.
// Refresh never fails on an empty cache, it simply leaves the previous view
// in place until the poller delivers.
//
// Example Usage:
//
//	seeder := registry.NewSeeder(reg, logger)
//	seeder.Seed(plugins.Builtins())
//
//	// Third-party manifests discovered from disk share one generic factory.
//	reg.Discover(ctx, cfg.PluginDir, plugins.Descriptor)
package plugins
