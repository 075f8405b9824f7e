// Package store implements a unidirectional state container.
//
// A Store owns one mutable state value and one Reducer. Actions go in through
// Send, asynchronous work through Run, and every state transition is made by
// the reducer. Observers read snapshots through CurrentState or subscribe to
// deduplicated change streams.
//
// ARCHITECTURE:
//
// Effects:
// Every reduction returns an Effect describing what happens next:
//   - Reduce(action): reduce again, immediately, in the same chain
//   - Run(asyncAction): start a detached task running Reducer.Run
//   - None(): the chain is finished
//
// A chain of Reduce effects is resolved by an explicit loop before Send
// returns, so pathological chains cannot grow the stack. A Run effect spawns a
// goroutine; when the task returns Reduce(action), that action is posted to
// the main loop and starts a fresh synchronous chain there. A task returning
// Run(next) spawns another task directly without going back to the loop.
//
// Main loop:
// State is only ever mutated by one reduction chain at a time. The store's
// mainloop.Loop plays the role of a UI framework's main thread: reductions
// triggered by async work always run on it. Send called off the loop still
// runs on the caller's goroutine (and emits a warning event), unless
// WithAutoThreading is given, in which case the dispatch is posted to the loop.
//
// Observation:
// After every reduction step the store publishes a snapshot of the state.
// Stream deduplicates consecutive equal snapshots; Select projects a field
// and deduplicates it the same way. Fields wrapped in AllowDuplicates are
// projected with SelectVersioned, which deduplicates on the field's write
// version instead, so repeated writes of an equal value are still observed.
//
// Failure:
// The store has no error channel. Reducer.Run implementations translate their
// own failures into ordinary actions. Threading advisories are diagnostics
// (observability events), never errors.
//
// Testing:
// Test and TestAsync invoke the reducer directly, bypassing scheduling, and
// hand back the resulting state and the exact Effect produced. Settle waits
// for every in-flight task so whole chains can be asserted end to end.
package store
