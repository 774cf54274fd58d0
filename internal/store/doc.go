// Package store provides the key-value document persistence layer.
//
// Entities are persisted as JSON-array documents under stable keys (one
// document per entity kind). The store itself is schema-agnostic: it moves
// opaque strings. Drivers:
//   - "file": one document file per key, written atomically
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory": process-local, for tests and persistence-disabled runs
package store
