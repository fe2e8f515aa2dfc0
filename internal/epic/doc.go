// Package epic defines the shapes the Ricochet engine consumes: actions,
// conditions, reducers and the Epic registration form, plus the condition
// compiler that normalizes user-supplied condition descriptors.
//
// The package is deliberately free of engine state. Compilation here is
// pure shape work: string shorthands become Condition structs, nested
// arrays (AnyOf disjunctions) are expanded into fully conjunctive
// condition vectors, and selectors are memoized. The engine owns every
// runtime concern - indexing, staging, change detection.
//
// SENTINELS:
//
// Initial marks state, scope and condition values that have never been
// written. It is identity-compared and distinct from every legal user
// value, including nil. DefaultTarget is the instance key under which
// singleton epics keep their state. Neither sentinel may escape across
// the public boundary; the engine surfaces Initial to handlers as nil.
package epic
