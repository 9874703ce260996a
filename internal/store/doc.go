// Package store provides persistence for the hub's three record
// collections: stores, products, and orders.
//
// # Contract
//
// Every collection is loaded and saved as a whole. A missing or unreadable
// backing resource loads as an empty collection rather than an error, and a
// save replaces the entire collection atomically from a reader's
// perspective. First use provisions the backing resource with empty
// collections.
//
// # Implementations
//
// Two production backends share the contract:
//
//   - FileStore: one JSON array document per collection under a data
//     directory (stores.json, products.json, orders.json), saved via temp
//     file and rename.
//   - SQLiteStore: one JSON document row per collection in an embedded
//     SQLite database, saved via a single upsert statement.
//
// MemStore backs tests.
package store
