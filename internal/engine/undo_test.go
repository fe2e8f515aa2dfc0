package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avcs06/ricochet/internal/epic"
)

func TestUndo_DisabledStore(t *testing.T) {
	s := testStore()
	assert.ErrorIs(t, s.Undo(), ErrUndoDisabled)
	assert.ErrorIs(t, s.Redo(), ErrUndoDisabled)
}

func TestUndo_BoundedStackWithRedo(t *testing.T) {
	s := testStore(WithUndo(), WithMaxUndoStack(2))
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	// Three commits; the bound of 2 evicts the first cycle's entry.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Dispatch("a"))
	}
	assert.Equal(t, 3, stateCount(t, s, "e1"))
	assert.Equal(t, 2, s.UndoDepth())

	require.NoError(t, s.Undo())
	assert.Equal(t, 2, stateCount(t, s, "e1"))

	require.NoError(t, s.Undo())
	assert.Equal(t, 1, stateCount(t, s, "e1"))

	// The first cycle's entry was evicted; further undo is a no-op.
	require.NoError(t, s.Undo())
	assert.Equal(t, 1, stateCount(t, s, "e1"))
	assert.Equal(t, 0, s.UndoDepth())

	require.NoError(t, s.Redo())
	require.NoError(t, s.Redo())
	assert.Equal(t, 3, stateCount(t, s, "e1"))

	// Redo stack drained; further redo is a no-op.
	require.NoError(t, s.Redo())
	assert.Equal(t, 3, stateCount(t, s, "e1"))
}

func TestUndo_RedoComposition(t *testing.T) {
	// Undo(N) then Redo(N) is the identity on canonical state.
	s := testStore(WithUndo(), WithMaxUndoStack(10))
	require.NoError(t, s.Register(epic.Epic{
		Name:  "doc",
		State: map[string]any{"title": "", "meta": map[string]any{"rev": 0}},
		Updaters: []epic.Reducer{{
			Conditions: []any{"edit"},
			Handler: func(values []any, ctx *epic.HandlerContext) (*epic.HandlerUpdate, error) {
				m, _ := ctx.CurrentCycleState.(map[string]any)
				meta, _ := m["meta"].(map[string]any)
				rev, _ := meta["rev"].(int)
				return &epic.HandlerUpdate{State: map[string]any{
					"title": values[0],
					"meta":  map[string]any{"rev": rev + 1},
				}}, nil
			},
		}},
	}))

	require.NoError(t, s.Dispatch(epic.Action{Type: "edit", Payload: "draft"}))
	require.NoError(t, s.Dispatch(epic.Action{Type: "edit", Payload: "final"}))

	want, err := s.EpicState("doc")
	require.NoError(t, err)

	require.NoError(t, s.Undo())
	require.NoError(t, s.Undo())

	first, err := s.EpicState("doc")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "", "meta": map[string]any{"rev": 0}}, first)

	require.NoError(t, s.Redo())
	require.NoError(t, s.Redo())

	got, err := s.EpicState("doc")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUndo_NewCommitClearsRedoStack(t *testing.T) {
	s := testStore(WithUndo())
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	require.NoError(t, s.Dispatch("a"))
	require.NoError(t, s.Dispatch("a"))
	require.NoError(t, s.Undo())
	assert.Equal(t, 1, s.RedoDepth())

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 0, s.RedoDepth(), "a committed cycle invalidates redo history")
	assert.Equal(t, 2, stateCount(t, s, "e1"))
}

func TestUndo_NotifiesListenersWithStoreUndoSource(t *testing.T) {
	s := testStore(WithUndo())
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	var sources []string
	_, err := s.AddListener([]any{epic.Condition{Type: "e1", Selector: countSelector}},
		func(_ []any, ctx *epic.ListenerContext) error {
			sources = append(sources, ctx.SourceAction.Type)
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, s.Dispatch("a"))
	require.NoError(t, s.Undo())
	require.NoError(t, s.Redo())

	assert.Equal(t, []string{"a", ActionTypeUndo, ActionTypeRedo}, sources)
}

func TestUndo_MultipleWritesInOneCycleComposeToOneEntry(t *testing.T) {
	// Two updaters touch the same epic in one cycle; one undo restores
	// the pre-cycle state in a single step.
	s := testStore(WithUndo())
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e1",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{
			{Conditions: []any{"a"}, Handler: incrementHandler},
			{Conditions: []any{"a"}, Handler: incrementHandler},
		},
	}))

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 2, stateCount(t, s, "e1"))
	assert.Equal(t, 1, s.UndoDepth())

	require.NoError(t, s.Undo())
	assert.Equal(t, 0, stateCount(t, s, "e1"))
}
