// Package ingest polls declared data sources and feeds the shared cache.
//
// Identical declarations (same kind, uri and poll interval) collapse to a
// single poller, reference counted by EnsureSource/Release. Each poller runs
// in its own goroutine: fetch, parse, hash, write through to the cache, and
// publish a change event on the source's topic only when the content hash
// moved. A first successful fetch always publishes, so a widget that binds
// before the poller's first tick still gets its initial paint.
//
// Failures never stop a poller. Consecutive failures stretch the interval
// exponentially (factor 1.5, capped at ten times base by default) and flag
// the source Degraded past the threshold; the next success snaps both back
// and announces the recovery. Either way subscribers keep the last good
// payload from the cache.
//
// One fetcher per source kind:
//
//   - rest_api: HTTP GET through the shared rate-limited client, body parsed
//     per the declared hint or sniffed content type
//   - file: local read, hinted parse, with a filesystem watch nudging the
//     poller ahead of schedule on writes
//   - pdf: local read, text extracted per page
//   - html: HTTP GET, content extracted by css:/xpath: selector hints or
//     whole-document text fallback
//
// Example Usage:
//
//	mgr := ingest.New(ingest.Options{Cache: c, Bus: bus, Logger: logger})
//	id, err := mgr.EnsureSource(types.SourceConfig{
//		Kind:         types.SourceRest,
//		URI:          "https://api.example.com/orders",
//		PollInterval: types.Duration(30 * time.Second),
//	})
//	// ... subscribe widgets to id, then later:
//	mgr.Release(id)
package ingest
