// Package store provides a SQLite-backed log of conversion runs.
//
// Each run records:
//   - Runs: input and output paths, timestamps, example counts and the
//     outcome tally
//   - Attempts: every attempted (example, parse) pair with its outcome and
//     the content-addressed id of the raw query text
//   - Missing IDs: legacy identifiers that had no mapping, per kind
//
// The log is append-only. A run is written in two steps: BeginRun inserts
// an open run row, FinishRun writes attempts and missing identifiers and
// closes the run as finished in a single transaction. AbortRun closes an
// open run as aborted without attempts. A run is closed once.
//
// # Ordering
//
// Reads are deterministic. Attempts are ordered by seq, runs by start time
// then id, and missing identifiers by id under binary collation.
//
// # Database Configuration
//
// Set through go-sqlite3 DSN parameters on every connection:
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - txlock=immediate: Transactions take the write lock on BEGIN
package store
