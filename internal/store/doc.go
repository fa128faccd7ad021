// Package store provides SQLite-backed storage for compiled artifacts and
// the execution log.
//
// The store holds two tables:
//   - Artifacts: assembled machine code plus its data layout, keyed by the
//     canonical hash of the specialized program (ir.Hash)
//   - Runs: one record per execution with its inputs, outputs and result
//
// # Ordering
//
// Rows carry a seq INTEGER logical clock. Listing queries order by
// seq ASC, id ASC COLLATE BINARY and never by wall time.
//
// # Code format
//
// The database user_version records the code format of its artifacts.
// Opening a cache written under an older format empties the artifacts
// table; a newer format is refused.
//
// # Connection
//
// Every connection runs in WAL mode with synchronous=NORMAL, a five second
// busy timeout and foreign keys on.
package store
