// Package testutil holds deterministic helpers shared by tests that drive a
// full rule system: fixed drain IDs, a counting rule and a logger that
// writes through testing.TB.
package testutil
