package value

import "fmt"

// Freeze returns a frozen snapshot of v: a deep clone of its
// map[string]any / []any structure. The engine never mutates a
// frozen snapshot; all writes go through Unfreeze + Merge.
func Freeze(v any) any {
	return deepClone(v)
}

// Unfreeze returns a mutable deep clone of a frozen snapshot.
func Unfreeze(v any) any {
	return deepClone(v)
}

// Clone is an alias for the deep copy used by Freeze and Unfreeze.
// Introspection accessors use it to hand out state that cannot leak
// mutation back into the registry.
func Clone(v any) any {
	return deepClone(v)
}

// deepClone copies a value tree. Maps and slices are copied recursively,
// scalars are returned as-is. Only map[string]any and []any are copied;
// any other composite kind (structs, typed maps or slices) is returned
// as-is, like a scalar.
func deepClone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepClone(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepClone(e)
		}
		return out
	default:
		return v
	}
}

// isObject reports whether v is a mergeable object tree node.
func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// deletedMarker is the type behind Deleted. A dedicated type keeps the
// marker distinguishable from every legal user value.
type deletedMarker struct{}

func (deletedMarker) String() string { return "<deleted>" }

// Deleted marks a key in an undo patch that did not exist before the
// corresponding merge. Apply removes the key instead of assigning it.
var Deleted any = deletedMarker{}

// MergeError reports a patch whose shape is incompatible with the target
// it was merged onto, e.g. an object patch over a primitive.
type MergeError struct {
	Path    string
	Message string
}

func (e *MergeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("merge: %s", e.Message)
	}
	return fmt.Sprintf("merge at %q: %s", e.Path, e.Message)
}
