// Package trace records what a rule system did and renders it
// deterministically.
//
// A Recorder is an engine.Observer that keeps every drain and evaluation in
// memory. Canonical JSON (sorted keys, NFC strings, no HTML escaping) makes
// recorded traces and variable snapshots byte-stable, so they can be
// compared against golden files and stored in the journal.
package trace
