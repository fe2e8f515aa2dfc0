// Package harness runs conformance scenarios against the engine.
//
// A scenario is a YAML file naming CUE epic definitions, a list of steps
// (dispatches, undo, redo) and assertions over the final state and the
// recorded cycle traces. Scenarios double as golden-trace tests: the
// canonical JSON of every cycle trace is compared against a fixture via
// goldie.
//
// Cycle tokens are fixed per scenario run, so traces are byte-stable.
package harness
