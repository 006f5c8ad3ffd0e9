// Package linked binds in-memory entities and views to nodes and standing
// queries of a triple store.
//
// A Binding is the per-store context: it owns the identity cache, the
// observers and the mutation translator. Entities are obtained from the
// Binding and stay synchronized with the store in both directions:
//
//	Entity.Set → mutation → store.Execute → notification → diff → Entity
//
// Local writes apply optimistically and move the entity to
// AwaitingOwnEcho; the store's echo of the write is buffered and
// reconciled once when the write returns, so a write never produces a
// second write or duplicate change events.
//
// Everything in this package runs on the caller's goroutine. A Binding and
// its entities are not safe for concurrent use.
package linked
