package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avcs06/ricochet/internal/epic"
)

// =============================================================================
// Test helpers
// =============================================================================

// seqTokens is an inexhaustible token generator for tests that do not
// care about trace bytes.
type seqTokens struct{ n int }

func (g *seqTokens) Generate() string {
	g.n++
	return fmt.Sprintf("t-%d", g.n)
}

func testStore(opts ...Option) *Store {
	base := []Option{WithDebug(), WithTokens(&seqTokens{})}
	return New(append(base, opts...)...)
}

// counterEpic builds an epic whose single updater increments
// state.count on the given action type.
func counterEpic(name, actionType string) epic.Epic {
	return epic.Epic{
		Name:  name,
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{actionType},
			Handler:    incrementHandler,
		}},
	}
}

func incrementHandler(_ []any, ctx *epic.HandlerContext) (*epic.HandlerUpdate, error) {
	return &epic.HandlerUpdate{State: map[string]any{"count": cycleCount(ctx) + 1}}, nil
}

func cycleCount(ctx *epic.HandlerContext) int {
	m, _ := ctx.CurrentCycleState.(map[string]any)
	n, _ := m["count"].(int)
	return n
}

// countSelector reads count out of an observed epic state.
func countSelector(payload any, _ string) any {
	if m, ok := payload.(map[string]any); ok {
		return m["count"]
	}
	return nil
}

// copyFromHandler sets state.count to the value observed by condition
// idx, so tests can assert which value a condition delivered.
func copyFromHandler(idx int) epic.Handler {
	return func(values []any, _ *epic.HandlerContext) (*epic.HandlerUpdate, error) {
		n, _ := values[idx].(int)
		return &epic.HandlerUpdate{State: map[string]any{"count": n}}, nil
	}
}

func stateCount(t *testing.T, s *Store, name string) int {
	t.Helper()
	state, err := s.EpicState(name)
	require.NoError(t, err)
	if state == nil {
		return 0
	}
	m, ok := state.(map[string]any)
	require.True(t, ok, "state of %s is not a map", name)
	n, _ := m["count"].(int)
	return n
}

// =============================================================================
// Registration
// =============================================================================

func TestRegister_DuplicateEpic(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	err := s.Register(counterEpic("e1", "b"))
	assert.True(t, IsCode(err, ErrCodeDuplicateEpic), "got %v", err)
}

func TestRegister_AllPassiveConditionsRejected(t *testing.T) {
	s := testStore()
	err := s.Register(epic.Epic{
		Name: "e1",
		Updaters: []epic.Reducer{{
			Conditions: []any{epic.Condition{Type: "a", Passive: true}},
			Handler:    incrementHandler,
		}},
	})
	assert.True(t, IsCode(err, ErrCodeNoPassiveUpdaters), "got %v", err)
}

func TestRegister_EmptyConditionTypeRejected(t *testing.T) {
	s := testStore()
	err := s.Register(epic.Epic{
		Name: "e1",
		Updaters: []epic.Reducer{{
			Conditions: []any{""},
			Handler:    incrementHandler,
		}},
	})
	assert.True(t, IsCode(err, ErrCodeInvalidConditionType), "got %v", err)
}

func TestRegister_PatternConditionNeedsPatternsOption(t *testing.T) {
	s := testStore() // patterns disabled
	err := s.Register(epic.Epic{
		Name: "sink",
		Updaters: []epic.Reducer{{
			Conditions: []any{"USER_*"},
			Handler:    incrementHandler,
		}},
	})
	assert.True(t, IsCode(err, ErrCodeInvalidConditionType), "got %v", err)
}

func TestRegister_DisjunctionExpandsToIndependentUpdaters(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e1",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{[]any{"a1", "a2"}},
			Handler:    incrementHandler,
		}},
	}))

	infos, err := s.UpdaterInfos("e1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 0, infos[0].Index)
	assert.Equal(t, 0, infos[1].Index)

	require.NoError(t, s.Dispatch("a1"))
	require.NoError(t, s.Dispatch("a2"))
	assert.Equal(t, 2, stateCount(t, s, "e1"))
}

func TestUnregister_RemovesUpdaterIndexEntries(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))
	require.NoError(t, s.Register(counterEpic("e2", "a")))

	require.NoError(t, s.Unregister("e1"))
	require.NoError(t, s.Dispatch("a"))

	_, err := s.EpicState("e1")
	assert.Error(t, err)
	assert.Equal(t, 1, stateCount(t, s, "e2"))
}

// =============================================================================
// Dispatch invariants
// =============================================================================

func TestDispatch_ExternalActionCannotUseEpicName(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	err := s.Dispatch("e1")
	assert.True(t, IsCode(err, ErrCodeInvalidEpicAction), "got %v", err)
}

func TestDispatch_RepeatedExternalActionRollsBack(t *testing.T) {
	s := testStore()
	e := counterEpic("e1", "a")
	e.Updaters[0].Handler = func(_ []any, ctx *epic.HandlerContext) (*epic.HandlerUpdate, error) {
		return &epic.HandlerUpdate{
			State:   map[string]any{"count": cycleCount(ctx) + 1},
			Actions: []any{"a"},
		}, nil
	}
	require.NoError(t, s.Register(e))

	err := s.Dispatch("a")
	assert.True(t, IsCode(err, ErrCodeNoRepeatedExternalAction), "got %v", err)
	assert.Equal(t, 0, stateCount(t, s, "e1"), "repeat detection must roll the cycle back")
}

func TestDispatch_BareStringAndActionShapes(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	require.NoError(t, s.Dispatch("a"))
	require.NoError(t, s.Dispatch(epic.Action{Type: "a", Payload: map[string]any{"x": 1}}))
	assert.Equal(t, 2, stateCount(t, s, "e1"))

	err := s.Dispatch(42)
	assert.True(t, IsCode(err, ErrCodeInvalidEpicAction), "got %v", err)
}

// =============================================================================
// Scenario: passive conditions
// =============================================================================

func TestDispatch_PassiveDoesNotTrigger(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a1")))

	e2 := epic.Epic{
		Name:  "e2",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{"a2", epic.Condition{Type: "e1", Passive: true}},
			Handler:    incrementHandler,
		}},
	}
	require.NoError(t, s.Register(e2))

	require.NoError(t, s.Dispatch("a1"))

	assert.Equal(t, 1, stateCount(t, s, "e1"))
	assert.Equal(t, 0, stateCount(t, s, "e2"), "passive condition must not trigger e2")
}

func TestDispatch_PassiveReceivesLatestValue(t *testing.T) {
	// e3 copies the passive e1 value, e4 copies the passive e2 value.
	// Whichever side of the cascade updates later, both end up seeing
	// the final in-cycle value.
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))
	require.NoError(t, s.Register(counterEpic("e2", "a")))

	require.NoError(t, s.Register(epic.Epic{
		Name:  "e3",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{
				epic.Condition{Type: "e2", Selector: countSelector},
				epic.Condition{Type: "e1", Passive: true, Selector: countSelector},
			},
			Handler: copyFromHandler(1),
		}},
	}))
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e4",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{
				epic.Condition{Type: "e1", Selector: countSelector},
				epic.Condition{Type: "e2", Passive: true, Selector: countSelector},
			},
			Handler: copyFromHandler(1),
		}},
	}))

	require.NoError(t, s.Dispatch("a"))

	assert.Equal(t, 1, stateCount(t, s, "e1"))
	assert.Equal(t, 1, stateCount(t, s, "e2"))
	assert.Equal(t, 1, stateCount(t, s, "e3"), "e3 must see e1's in-cycle value")
	assert.Equal(t, 1, stateCount(t, s, "e4"), "e4 must see e2's value even though e2 updated later")
}

// =============================================================================
// Scenario: chained epic action with required condition
// =============================================================================

func TestDispatch_ChainedEpicActionFiresRequiredCondition(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e2",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{epic.Condition{Type: "e1", Required: true, Selector: countSelector}},
			Handler:    incrementHandler,
		}},
	}))

	listenerCalls := 0
	unsubscribe, err := s.AddListener([]any{"e2"}, func(values []any, ctx *epic.ListenerContext) error {
		listenerCalls++
		assert.Equal(t, "a", ctx.SourceAction.Type)
		return nil
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, s.Dispatch("a"))

	assert.Equal(t, 1, stateCount(t, s, "e1"))
	assert.Equal(t, 1, stateCount(t, s, "e2"))
	assert.Equal(t, 1, listenerCalls, "listener on e2 must fire exactly once")
}

func TestDispatch_UnchangedSelectorValueStopsCascade(t *testing.T) {
	// e2 observes a selector over e1 that does not change on the second
	// dispatch; the chained epic action must not re-fire e2.
	s := testStore()
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e1",
		State: map[string]any{"count": 0, "flag": true},
		Updaters: []epic.Reducer{{
			Conditions: []any{"a"},
			Handler:    incrementHandler,
		}},
	}))
	require.NoError(t, s.Register(epic.Epic{
		Name:  "e2",
		State: map[string]any{"count": 0},
		Updaters: []epic.Reducer{{
			Conditions: []any{epic.Condition{
				Type: "e1",
				Selector: func(payload any, _ string) any {
					m, _ := payload.(map[string]any)
					return m["flag"]
				},
			}},
			Handler: incrementHandler,
		}},
	}))

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 1, stateCount(t, s, "e2"), "first change from initial fires e2")

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 2, stateCount(t, s, "e1"))
	assert.Equal(t, 1, stateCount(t, s, "e2"), "unchanged selector value must not re-fire e2")
}

// =============================================================================
// Listeners
// =============================================================================

func TestListener_UnsubscribeIsIdempotent(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	calls := 0
	unsubscribe, err := s.AddListener([]any{"e1"}, func([]any, *epic.ListenerContext) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe() // second call is a no-op

	require.NoError(t, s.Dispatch("a"))
	assert.Equal(t, 1, calls, "unsubscribed listener must not fire")
}

func TestListener_DispatchFromListenerFails(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	var listenerErr error
	_, err := s.AddListener([]any{"e1"}, func([]any, *epic.ListenerContext) error {
		listenerErr = s.Dispatch("b")
		return listenerErr
	})
	require.NoError(t, err)

	err = s.Dispatch("a")
	assert.True(t, IsCode(listenerErr, ErrCodeNoDispatchInEpicListener), "got %v", listenerErr)
	assert.True(t, IsCode(err, ErrCodeNoDispatchInEpicListener), "listener errors surface from Dispatch, got %v", err)
	assert.Equal(t, 1, stateCount(t, s, "e1"), "listener errors never roll back the commit")
}

func TestListener_ErrorsAreCollectedNotFatal(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a")))

	secondRan := false
	_, err := s.AddListener([]any{"e1"}, func([]any, *epic.ListenerContext) error {
		return fmt.Errorf("listener boom")
	})
	require.NoError(t, err)
	_, err = s.AddListener([]any{"e1"}, func([]any, *epic.ListenerContext) error {
		secondRan = true
		return nil
	})
	require.NoError(t, err)

	err = s.Dispatch("a")
	assert.ErrorContains(t, err, "listener boom")
	assert.True(t, secondRan, "one failing listener must not starve the rest")
	assert.Equal(t, 1, stateCount(t, s, "e1"))
}

func TestListener_RequiredConditionGating(t *testing.T) {
	s := testStore()
	require.NoError(t, s.Register(counterEpic("e1", "a1")))
	require.NoError(t, s.Register(counterEpic("e2", "a2")))

	calls := 0
	_, err := s.AddListener([]any{
		epic.Condition{Type: "e1", Required: true, Selector: countSelector},
		epic.Condition{Type: "e2", Required: true, Selector: countSelector},
	}, func([]any, *epic.ListenerContext) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Dispatch("a1"))
	assert.Equal(t, 0, calls, "only one required condition changed")

	// Both change within one cycle when a1 and a2 both fire via a
	// handler-queued action.
	require.NoError(t, s.Register(epic.Epic{
		Name: "fanout",
		Updaters: []epic.Reducer{{
			Conditions: []any{"both"},
			Handler: func([]any, *epic.HandlerContext) (*epic.HandlerUpdate, error) {
				return &epic.HandlerUpdate{Actions: []any{"a1", "a2"}}, nil
			},
		}},
	}))
	require.NoError(t, s.Dispatch("both"))
	assert.Equal(t, 1, calls, "both required conditions changed in one cycle")
}
