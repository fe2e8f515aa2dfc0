// Package compiler turns CUE epic definitions into registrable epics.
//
// Reducer handlers are ordinary Go functions, so a definition file
// cannot express arbitrary logic. Instead each updater declares a closed
// set of ops - set, increment, append, copy - that the compiler lowers
// into a handler closure over the epic's cycle state. The ops cover what
// scenario files and the CLI need while exercising the full engine
// surface: conditions with passive/required/pattern flags, chaining,
// instances and undo.
//
// Definition form:
//
//	epic: counter: {
//		state: {count: 0}
//		updaters: [{
//			conditions: ["INCREMENT"]
//			ops: [{op: "increment", path: "count"}]
//		}]
//	}
//
// Conditions may be strings or structs with type/passive/required/
// target/path fields; path compiles into a field selector over the
// observed payload.
package compiler
