package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_ScalarReplacement(t *testing.T) {
	merged, undo, redo, err := Merge(
		map[string]any{"count": 1},
		map[string]any{"count": 2},
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"count": 2}, merged)
	assert.Equal(t, map[string]any{"count": 1}, undo)
	assert.Equal(t, map[string]any{"count": 2}, redo)
}

func TestMerge_NestedObjectRecursion(t *testing.T) {
	target := map[string]any{
		"user": map[string]any{"name": "ada", "age": 36},
		"tags": []any{"a"},
	}
	patch := map[string]any{
		"user": map[string]any{"age": 37},
	}

	merged, undo, redo, err := Merge(target, patch)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"user": map[string]any{"name": "ada", "age": 37},
		"tags": []any{"a"},
	}, merged)
	assert.Equal(t, map[string]any{"user": map[string]any{"age": 36}}, undo)
	assert.Equal(t, map[string]any{"user": map[string]any{"age": 37}}, redo)
}

func TestMerge_NewKeyRecordsDeletedMarker(t *testing.T) {
	merged, undo, redo, err := Merge(
		map[string]any{"a": 1},
		map[string]any{"b": 2},
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged)
	assert.Equal(t, map[string]any{"b": Deleted}, undo)
	assert.Equal(t, map[string]any{"b": 2}, redo)

	// Applying the undo patch removes the added key again.
	restored := Apply(Unfreeze(merged), undo)
	assert.Equal(t, map[string]any{"a": 1}, restored)
}

func TestMerge_ObjectOverPrimitiveFails(t *testing.T) {
	_, _, _, err := Merge(
		map[string]any{"count": 1},
		map[string]any{"count": map[string]any{"nested": true}},
	)
	var me *MergeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "count", me.Path)
}

func TestMerge_NilTargetIsReplacement(t *testing.T) {
	merged, undo, redo, err := Merge(nil, map[string]any{"count": 0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 0}, merged)
	assert.Nil(t, undo)
	assert.Equal(t, map[string]any{"count": 0}, redo)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	target := map[string]any{"nested": map[string]any{"a": 1}}
	patch := map[string]any{"nested": map[string]any{"b": 2}}

	merged, _, _, err := Merge(target, patch)
	require.NoError(t, err)

	merged.(map[string]any)["nested"].(map[string]any)["a"] = 99
	assert.Equal(t, 1, target["nested"].(map[string]any)["a"], "merge must not alias the target")
	assert.NotContains(t, patch["nested"].(map[string]any), "a")
}

func TestApply_RedoReproducesMerge(t *testing.T) {
	target := map[string]any{"a": 1, "nested": map[string]any{"x": "old"}}
	patch := map[string]any{"a": 2, "nested": map[string]any{"x": "new"}, "b": true}

	merged, undo, redo, err := Merge(target, patch)
	require.NoError(t, err)

	replayed := Apply(Unfreeze(target), redo)
	assert.Equal(t, merged, replayed)

	restored := Apply(Unfreeze(merged), undo)
	assert.Equal(t, target, restored)
}

func TestComposeUndo_OlderWins(t *testing.T) {
	// Two merges touch the same key: the composed undo restores the
	// value from before the first merge.
	v0 := map[string]any{"count": 0}
	v1, undo1, redo1, err := Merge(v0, map[string]any{"count": 1})
	require.NoError(t, err)
	v2, undo2, redo2, err := Merge(v1, map[string]any{"count": 2, "extra": "x"})
	require.NoError(t, err)

	undo := ComposeUndo(undo1, undo2)
	redo := ComposeRedo(redo1, redo2)

	assert.Equal(t, v0, Apply(Unfreeze(v2), undo))
	assert.Equal(t, v2, Apply(Unfreeze(v0), redo))
}

func TestFreeze_CloneIndependence(t *testing.T) {
	original := map[string]any{"list": []any{1, 2}, "m": map[string]any{"k": "v"}}
	frozen := Freeze(original)

	original["m"].(map[string]any)["k"] = "mutated"
	assert.Equal(t, "v", frozen.(map[string]any)["m"].(map[string]any)["k"])

	thawed := Unfreeze(frozen).(map[string]any)
	thawed["list"].([]any)[0] = 99
	assert.Equal(t, 1, frozen.(map[string]any)["list"].([]any)[0])
}

func TestNormalizeNumbers(t *testing.T) {
	in := map[string]any{
		"i":  1,
		"f":  2.0,
		"fr": 2.5,
		"l":  []any{int32(3), uint(4)},
	}
	out := NormalizeNumbers(in).(map[string]any)
	assert.Equal(t, int64(1), out["i"])
	assert.Equal(t, int64(2), out["f"])
	assert.Equal(t, 2.5, out["fr"])
	assert.Equal(t, []any{int64(3), int64(4)}, out["l"])
}
