// Package harness runs scripted command scenarios against a fresh athena
// store and checks the replies.
//
// A scenario drives one or more named sessions through a dispatcher that
// journals every command, so the resulting trace can be asserted on and
// the transcript compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: 7                       # optional, random source for RAND/POP/RANDSET
//	limits:                       # optional
//	  max_powerset_card: 8
//	  max_product_size: 64
//	  max_objects: 1024
//	steps:
//	  - send: "SET A {1, 2}"
//	    expect: "OK."
//	  - session: other            # defaults to "main"
//	    send: "EVAL A * {2}"
//	    expect: "{ 2 }"
//	  - send: "EVAL {1"
//	    expect_error: true
//	assertions:
//	  - type: set_equals
//	    name: A
//	    value: "{ 1, 2 }"
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - set_equals: the named set renders as value
//   - set_missing: no set is bound to name
//   - objects: after a collection the store holds exactly count objects
//   - trace_count: the journal holds exactly count entries for command
//   - trace_order: commands appear in the journal in the given order
//
// Steps run on one goroutine, so a LOCK on a set that another scenario
// session holds never returns.
//
// # Golden Files
//
// RunWithGolden writes the transcript (one "[session] > line" request
// followed by its "[session] < line" reply lines) and compares it against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
