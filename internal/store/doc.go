// Package store provides the SQLite-backed reference triple store that the
// binding layer runs against.
//
// The store offers the primitives the binding layer needs and nothing more:
//   - Execute: apply queryir update statements, one SQL transaction each
//   - Select / Node / Triples: read basic graph patterns and node contents
//   - ObserveNode / ObserveQuery: incremental change notification
//   - ImportNQuads / ExportNQuads: bulk load and dump
//
// # Notification Delivery
//
// Observers are notified once when they subscribe (with the current state,
// possibly empty) and again after every statement that changes what they
// observe: a node observer when the subject's triple set changed, a query
// observer when the result list changed. Notifications are queued FIFO and
// drained synchronously by the outermost call into the store. A callback
// that calls Execute (or subscribes) only enqueues; its notifications are
// delivered after the callback returns. Delivery is therefore ordered by
// statement submission and never concurrent.
//
// # Logical Time
//
// Every inserted triple is stamped with seq from a monotonic logical clock.
// Listings and exports order by seq, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: ":memory:" databases stay alive for the Store
package store
