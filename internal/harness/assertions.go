package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/avcs06/ricochet/internal/engine"
	"github.com/avcs06/ricochet/internal/value"
)

func checkAssertion(result *Result, a *Assertion) error {
	switch a.Type {
	case AssertStateEquals:
		return checkStateEquals(result, a)
	case AssertTraceContains:
		return checkTraceContains(result, a)
	case AssertTraceOrder:
		return checkTraceOrder(result, a)
	case AssertTraceCount:
		return checkTraceCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func checkStateEquals(result *Result, a *Assertion) error {
	var state any
	var err error
	if a.Target != "" {
		state, err = result.Store.InstanceState(a.Epic, a.Target)
	} else {
		state, err = result.Store.EpicState(a.Epic)
	}
	if err != nil {
		return err
	}

	got := state
	if a.Path != "" {
		got = lookupPath(state, a.Path)
	}
	want := value.NormalizeNumbers(a.Expect)
	got = value.NormalizeNumbers(got)
	if !cmp.Equal(want, got) {
		return fmt.Errorf("state mismatch at %s.%s:\n%s", a.Epic, a.Path, cmp.Diff(want, got))
	}
	return nil
}

func checkTraceContains(result *Result, a *Assertion) error {
	for _, tr := range result.Traces {
		for _, ev := range tr.Events {
			if ev.Kind == engine.TraceAction && ev.Action == a.Action {
				return nil
			}
		}
	}
	return fmt.Errorf("action %q not found in any trace", a.Action)
}

func checkTraceCount(result *Result, a *Assertion) error {
	count := 0
	for _, tr := range result.Traces {
		for _, ev := range tr.Events {
			if ev.Kind == engine.TraceUpdater && ev.Epic == a.Epic {
				count++
			}
		}
	}
	if count != a.Count {
		return fmt.Errorf("epic %q fired %d times, want %d", a.Epic, count, a.Count)
	}
	return nil
}

// checkTraceOrder verifies the epics' firings appear as a subsequence of
// the recorded updater events.
func checkTraceOrder(result *Result, a *Assertion) error {
	idx := 0
	for _, tr := range result.Traces {
		for _, ev := range tr.Events {
			if idx < len(a.Epics) && ev.Kind == engine.TraceUpdater && ev.Epic == a.Epics[idx] {
				idx++
			}
		}
	}
	if idx != len(a.Epics) {
		return fmt.Errorf("firing order %v not satisfied, matched %d of %d", a.Epics, idx, len(a.Epics))
	}
	return nil
}

func lookupPath(root any, path string) any {
	cur := root
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}
