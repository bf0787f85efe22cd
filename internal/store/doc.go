// Package store records harness runs and per-fixture verdicts in SQLite.
//
// Each run gets a UUIDv7 identifier, so identifiers sort by start time. A
// run is opened with BeginRun, receives one verdict per fixture through
// RecordVerdict, and is closed by FinishRun, which also stores the pass/fail
// totals. Runs that never finish stay in the "running" status.
//
// # Ordering
//
// Verdicts are returned in the order they were recorded (seq ASC). Runs are
// listed newest first (started_at DESC, id DESC).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
