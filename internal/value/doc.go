// Package value implements the frozen value layer for epic state and scope.
//
// Epic state is held as frozen snapshots: normalized trees of
// map[string]any, []any and scalars that the engine treats as read-only.
// Freeze produces such a snapshot, Unfreeze produces a mutable deep clone,
// and Merge overlays a patch onto a target while emitting the inverse
// patches that power undo/redo.
//
// PATCH MODEL:
//
// Merge returns three values: the merged tree, an undo patch and a redo
// patch. Applying the redo patch to the pre-merge target reproduces the
// merged tree; applying the undo patch to the merged tree restores the
// pre-merge target. Keys that did not exist before the merge are recorded
// in the undo patch as the Deleted marker, so Apply can remove them again.
//
// The patches are opaque to callers - any reversible structure satisfies
// the contract. Here they are plain value trees plus the Deleted marker.
//
// Canonical JSON (canonical.go) serializes value trees deterministically
// for trace output and golden-file comparison: sorted keys, NFC-normalized
// strings, no HTML escaping.
package value
