// Package events provides the in-process publish/subscribe bus that links
// the ingest, cache, and widget subsystems to each other and to the shell
// stream.
//
// Topics are string keys. Data-change events publish on the owning source's
// ID; cross-cutting events use the reserved topics in the types package. The
// wildcard topic receives every event and backs the WebSocket stream.
//
// Delivery model:
//   - Each subscriber owns a bounded FIFO queue drained by its own goroutine
//   - Publish never blocks; a full queue drops its oldest event
//   - Events on one topic reach each subscriber in publish order
//   - A slow or stuck subscriber cannot delay siblings or publishers
//
// Example Usage:
//
//	bus := events.New(logger, metrics)
//	sub := bus.Subscribe("src_a1b2c3d4")
//	go func() {
//		for ev := range sub.C {
//			handle(ev)
//		}
//	}()
//	bus.Publish("src_a1b2c3d4", events.TypeDataChanged, payload)
//	bus.Unsubscribe(sub)
package events
