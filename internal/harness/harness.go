package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/avcs06/ricochet/internal/compiler"
	"github.com/avcs06/ricochet/internal/engine"
	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/testutil"
	"github.com/avcs06/ricochet/internal/value"
)

// Result captures the outcome of a scenario run: the store (still live
// for state assertions) and the trace of every dispatched cycle.
type Result struct {
	Scenario *Scenario
	Store    *engine.Store
	Traces   []*engine.Trace
}

// Run executes a scenario: compile definitions, build the store, run the
// steps. Assertions are not evaluated here; see Check.
func Run(scenario *Scenario) (*Result, error) {
	defs, err := loadDefinitions(scenario)
	if err != nil {
		return nil, err
	}

	dispatches := 0
	for _, step := range scenario.Steps {
		if step.Dispatch != nil {
			dispatches++
		}
	}

	opts := []engine.Option{
		engine.WithDebug(),
		engine.WithTokens(testutil.CycleTokens(dispatches)),
	}
	if scenario.Store.Patterns {
		opts = append(opts, engine.WithPatterns())
	}
	if scenario.Store.Undo {
		opts = append(opts, engine.WithUndo())
		if scenario.Store.MaxUndoStack > 0 {
			opts = append(opts, engine.WithMaxUndoStack(scenario.Store.MaxUndoStack))
		}
	}
	store := engine.New(opts...)

	for _, def := range defs {
		e, err := compiler.Build(def)
		if err != nil {
			return nil, fmt.Errorf("building epic %q: %w", def.Name, err)
		}
		if err := store.Register(e); err != nil {
			return nil, fmt.Errorf("registering epic %q: %w", def.Name, err)
		}
	}

	result := &Result{Scenario: scenario, Store: store}

	for i, step := range scenario.Steps {
		switch {
		case step.Dispatch != nil:
			action := epic.Action{
				Type:    step.Dispatch.Type,
				Payload: normalizedPayload(step.Dispatch.Payload),
				Target:  step.Dispatch.Target,
			}
			err := store.Dispatch(action)
			if step.ExpectError != "" {
				if !engine.IsCode(err, engine.ErrorCode(step.ExpectError)) {
					return nil, fmt.Errorf("steps[%d]: expected error code %s, got %v", i, step.ExpectError, err)
				}
			} else if err != nil {
				return nil, fmt.Errorf("steps[%d]: dispatch %s: %w", i, step.Dispatch.Type, err)
			}
			trace, terr := store.LastTrace()
			if terr != nil {
				return nil, terr
			}
			if trace != nil {
				result.Traces = append(result.Traces, trace)
			}
		case step.Undo > 0:
			for n := 0; n < step.Undo; n++ {
				if err := store.Undo(); err != nil {
					return nil, fmt.Errorf("steps[%d]: undo: %w", i, err)
				}
			}
		case step.Redo > 0:
			for n := 0; n < step.Redo; n++ {
				if err := store.Redo(); err != nil {
					return nil, fmt.Errorf("steps[%d]: redo: %w", i, err)
				}
			}
		}
	}

	return result, nil
}

// Check evaluates every assertion of the scenario against a run result
// and returns the failures.
func Check(result *Result) []error {
	var errs []error
	for i, a := range result.Scenario.Assertions {
		if err := checkAssertion(result, &a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err))
		}
	}
	return errs
}

func loadDefinitions(scenario *Scenario) ([]*compiler.Definition, error) {
	var defs []*compiler.Definition
	for _, ref := range scenario.Definitions {
		p := ref
		if !filepath.IsAbs(p) {
			p = filepath.Join(scenario.Dir(), p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", ref, err)
		}
		var loaded []*compiler.Definition
		if info.IsDir() {
			loaded, err = compiler.LoadDir(p)
		} else {
			loaded, err = compiler.LoadFiles(p)
		}
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", ref, err)
		}
		defs = append(defs, loaded...)
	}
	return defs, nil
}

// normalizedPayload converts a YAML payload to the engine's numeric
// spelling so change detection compares like with like.
func normalizedPayload(v any) any {
	return value.NormalizeNumbers(v)
}
