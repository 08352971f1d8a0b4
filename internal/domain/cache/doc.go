// Package cache provides the bounded in-memory payload cache shared by all
// widgets subscribed to a source.
//
// One entry per source ID. Entries expire lazily against their TTL: an
// expired entry is dropped on the read that finds it, never proactively.
// Capacity is bounded twice, by entry count and by resident bytes. When an
// insert pushes past either budget the cache evicts the
// least-recently-fetched entry among sources with zero subscribers; if every
// resident source still has subscribers the insert is accepted over budget
// and a pressure warning is raised instead of refusing data.
//
// Large payloads are held zstd-compressed and inflated transparently on Get.
// An optional durable store mirrors raw payloads so a restart can serve
// last-known data before the first poll completes.
//
// Example Usage:
//
//	c := cache.New(cache.Options{
//		MaxEntries:  256,
//		MaxBytes:    64 << 20,
//		Subscribers: ingest.Refs,
//		Logger:      logger,
//	})
//	c.Put("src_a1b2c3d4", payload, 30*time.Second)
//	entry, ok := c.Get("src_a1b2c3d4")
package cache
