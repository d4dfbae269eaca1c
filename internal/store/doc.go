// Package store provides SQLite-backed durable storage for matching runs.
//
// A run is one pass of the engine over an input file. The store keeps:
//   - Runs: run id, config digest and engine version
//   - Group results: per-group status, digests and recoverable flags
//   - Matches: the match records of each successful group
//
// # Ordering
//
// Runs, groups and matches each carry a seq INTEGER assigned in processing
// order. Every read orders by seq, never by wall time, so a stored run reads
// back identically on every query.
//
// # Atomic groups
//
// WriteGroup stores a group result and its matches in one transaction.
// A failed group stores its result row and no matches. Writing a group again
// for the same run replaces it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
