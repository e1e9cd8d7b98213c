// Package store provides SQLite-backed storage for a waypath workspace.
//
// One database holds every owner's entities:
//   - content: immutable blobs keyed by content address (a cas.Backend)
//   - aliases, definitions: the routing and code tables, unique per owner
//   - variables, secrets: flat string maps per owner
//   - invocations: the append-only execution audit log
//
// Content writes use INSERT ... ON CONFLICT DO NOTHING, so racing writers
// of identical bytes are safe without locking. List queries order with
// COLLATE BINARY so results never depend on collation settings.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
