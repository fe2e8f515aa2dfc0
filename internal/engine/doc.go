// Package engine implements the Ricochet dispatch engine.
//
// The engine is the heart of Ricochet - it receives actions, matches
// them against registered updater conditions, runs reducer handlers, and
// propagates the resulting Epic actions until the cycle reaches
// quiescence.
//
// ARCHITECTURE:
//
// Single-Threaded Cycle:
// Exactly one dispatch cycle is active at any time. All evaluation runs
// synchronously on the caller's goroutine; the engine introduces no
// concurrency primitives. This ensures:
// - Predictable updater evaluation order (registration order)
// - Depth-first propagation of chained Epic actions
// - Simple reasoning about rollback
//
// Dispatch Flow:
//  1. Dispatch(action) begins a cycle and resets the per-cycle caches
//  2. The action pump matches the action against direct updaters, then
//     pattern updaters
//  3. Each firing handler stages state/scope writes via the frozen value
//     layer; a state write synthesizes an Epic action that re-enters the
//     pump immediately
//  4. The cycle commits (promote staged values, push undo entry) or rolls
//     back wholesale if any handler returned an error
//  5. Listeners fire over the touched epics; their errors are collected,
//     never fatal to the committed state
//
// Registries are mutated only by Register/Unregister/AddListener and
// never during a cycle. The per-cycle transient fields on conditions and
// instances are reset on cycle exit, re-establishing the at-rest
// invariant.
package engine
