// Package buffer provides Ring, a bounded append-only ring that evicts its
// oldest item when full.
//
// It backs the hub's audit log. Appends never block and never fail while the
// ring is open; readers take a copy of everything or of the newest N items:
//
//	ring, err := buffer.NewRing[Event](1000, buffer.WithMetrics[Event](registry, "eventlog"))
//	ring.Append(ev)
//	recent := ring.Last(50)
//
// Prometheus export is opt-in via WithMetrics.
package buffer
