// Package harness runs rule-system scenarios described in YAML and checks
// what the engine actually did.
//
// # Scenario Format
//
//	name: var_var_var
//	description: "Three plain required variables"
//	reset_on_fire: false
//	max_steps: 0
//	define:
//	  - name: files
//	rules:
//	  - name: count
//	    type: counter
//	    required: [a, b, c]
//	    keys: [k]
//	    filters: { a: 1 }
//	    output: n
//	steps:
//	  - write: a
//	    value: 1
//	  - trade: { symbol: MACK, tick: 1, shares: 10, price: 4.5 }
//	  - file: { channel: files, path: /tmp/x.log, op: create }
//	    expect_error: "substring"
//	assertions:
//	  - type: fire_count
//	    rule: count
//	    count: 4
//
// Every step writes one value into the shared namespace and then drains the
// queue, unless hold is set. A step with expect_error passes only if the
// drain fails with an error containing that text.
//
// # Rule Types
//
//   - counter: always fires; writes the running fire count to output
//   - equals: fires when var equals value and writes set to target
//   - file_ext: the file-extension rule over a channel of file events
//   - vwap: the per-symbol VWAP rule
//
// counter and equals rules take required, keys and filters; counter rules
// also take optional.
// file_ext and vwap rules are named by the engine ("file-ext:<channel>:<ext>"
// and "vwap:<symbol>"); assertions must use those names.
//
// # Assertion Types
//
//   - fire_count: the rule's action ran exactly count times
//   - fire_order: the sequence of rules whose action ran equals rules
//   - final_value: the namespace variable var holds value
//   - queue_len: exactly count activations are still pending
//
// # Deterministic Traces
//
// Drains are numbered drain-1, drain-2, ... and evaluations carry the
// system's logical clock, so the same scenario always yields the same trace.
// RunWithGolden compares that trace against testdata/golden/<name>.golden.
package harness
