// Package registry provides the plugin catalog: the source of truth mapping
// plugin IDs to widget factories.
//
// Plugins arrive two ways. Built-ins are seeded at startup from Go factories
// via the Seeder. Third-party plugins are discovered from a directory of
// plugin.yaml manifests; discovered plugins are declarative, their widgets
// driven entirely by the manifest descriptor rather than by loaded code.
//
// Guarantees:
//   - Plugin IDs are unique; re-registering an ID fails with ErrDuplicateID
//   - Incomplete manifests fail with ErrInvalidManifest and a reason
//   - List returns manifests in registration order
//   - Discover reports a per-manifest result; one broken file never stops
//     the scan
//
// Example Usage:
//
//	reg := registry.New(logger)
//	if err := reg.Register(manifest); err != nil { ... }
//	results := reg.Discover(ctx, "/etc/dash/plugins", builder)
//	m, ok := reg.Lookup("clock")
package registry
