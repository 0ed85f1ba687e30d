// Package cell implements the variable cells and binding contexts that rules
// read from and write to.
//
// All cells and contexts live in an Arena and are addressed by handle. A cell
// never holds a reference to the things that listen to it: each subscription
// is a Sub record (kind, target index, slot) kept in the cell's subscriber
// list. Subscriptions of kind SubContext are delivered by the arena itself;
// every other kind is handed to the arena's Router, which is how the engine
// receives notifications for activation records without cells pointing back
// at them.
//
// WRITE SEMANTICS:
//
// Writing a cell always stores the value and always notifies, in
// subscription order, even when the new value equals the old one. There is no
// change detection at this layer.
//
// CONTEXTS:
//
// A Context is an ordered, name-unique view over cells. Positions are fixed
// at insertion. Adding a binding and listening to it are separate steps: a
// context only records changes for cells it explicitly listens to.
//
// The changed set is never cleared implicitly. Callers that care about
// per-cycle changes call ClearChanged themselves.
//
// Nothing in this package is safe for concurrent use.
package cell
