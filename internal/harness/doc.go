// Package harness runs scenario files against the demo stores.
//
// A scenario opens one demo (see internal/demo), dispatches a list of steps
// through a real store, and records two traces: the deduplicated whole-state
// stream and the store's event trace (reductions, task lifecycle, threading
// warnings). Assertions then check the traces and the final state, and the
// traces can be compared against golden files.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files with the same fields:
//
//	name: loader_success
//	description: "requestData settles with the fetched data"
//	demo: loader
//	config: { data: "X", delay: 1ms }
//	steps:
//	  - send: requestData
//	  - run: loadDataFromServer
//	    priority: high
//	  - send: increase
//	    from: goroutine
//	    auto_threading: true
//	assertions:
//	  - type: final_state
//	    expect: { data: "X", is_loading: false }
//	  - type: emissions
//	    count: 3
//
// # Assertion Types
//
//   - final_state: subset match against the final state
//   - states: exact match against the whole deduplicated state trace
//   - emissions: number of whole-state emissions
//   - trace_contains: a reduction of the named action appears in the trace
//   - trace_order: reductions of the named actions appear in this order
//   - trace_count: the named action is reduced exactly N times
//   - event_count: N events of the given type were emitted
//
// # Deterministic Testing
//
// Every step runs to completion, async work included, before the next one
// starts. Chain IDs come from store.SequentialChainIDs and event seq
// numbers from a fresh clock, so the same scenario always produces the same
// traces.
package harness
