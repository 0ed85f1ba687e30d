// Package store provides the SQLite-backed activation journal.
//
// The journal is append-only:
//   - drains: one row per ExecuteActivations call that had work, with the
//     variables changed around it
//   - evaluations: one row per dequeued record, condition result and
//     whether the action ran
//
// # Critical Patterns
//
// Logical ordering:
//   - drains are ordered by ord, evaluations by seq (the engine's logical
//     clock); wall-clock time is never stored
//   - every query ends with a deterministic ORDER BY
//
// Idempotent writes:
//   - WriteDrain uses ON CONFLICT DO NOTHING keyed on the drain ID, so
//     re-flushing a drain is harmless
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: evaluations must reference a drain
//
// The journal records; it does not restore. Engine state is not persisted.
package store
