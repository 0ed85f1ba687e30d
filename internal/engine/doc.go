// Package engine implements the Pachinko condition/action rule engine.
//
// A System holds a set of rules. Each rule declares the variables it reads
// and writes; the system builds one activation record per rule and unifies
// same-named variables across rules into a single shared cell. Writing a
// shared cell notifies every record that declared it.
//
// ARCHITECTURE:
//
// Activation gating:
// A record counts how many of its required variables are still missing.
// Once every required variable has seen an accepted write, the record is
// activatable and is enqueued on every later write that qualifies:
//   - without key variables, any write to a required variable
//   - with key variables, writes to key variables only
//
// Value filters restrict which writes are accepted.
//
// Evaluation:
// 1. Host writes cells through System.Namespace()
// 2. Notifications update records synchronously; satisfied records are
// enqueued FIFO
// 3. Host calls ExecuteActivations
// 4. Each dequeued record runs its condition, then its action if the
// condition held
// 5. Writes made by actions enqueue further records, drained in the same
// call until the queue is empty
//
// CRITICAL PATTERNS:
//
// Arena handles:
// Cells, contexts and records refer to each other by integer handle. The
// system is the arena's Router, so a cell write reaches a record through
// a subscription record rather than a pointer.
//
// Logical Clock:
// Evaluations are stamped with a monotonic seq from Clock.Next(). Wall-clock
// time is never used for ordering.
//
// Single writer:
// No locks. Exactly one goroutine may write cells or drain at a time.
package engine
