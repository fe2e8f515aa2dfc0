package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: the epic definitions to
// compile, the store configuration, the steps to run and the assertions
// over the outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Definitions lists CUE definition files or directories, relative to
	// the scenario file.
	Definitions []string `yaml:"definitions"`

	// Store configures the engine under test.
	Store StoreOptions `yaml:"store,omitempty"`

	// Steps is the main flow: dispatches and undo/redo applications.
	Steps []Step `yaml:"steps"`

	// Assertions validate final state and the recorded traces.
	Assertions []Assertion `yaml:"assertions"`

	dir string
}

// StoreOptions mirrors the engine's construction options.
type StoreOptions struct {
	Patterns     bool `yaml:"patterns,omitempty"`
	Undo         bool `yaml:"undo,omitempty"`
	MaxUndoStack int  `yaml:"maxUndoStack,omitempty"`
}

// Step is one scenario step. Exactly one of Dispatch, Undo or Redo must
// be set; Undo and Redo give repetition counts.
type Step struct {
	Dispatch *ActionStep `yaml:"dispatch,omitempty"`
	Undo     int         `yaml:"undo,omitempty"`
	Redo     int         `yaml:"redo,omitempty"`

	// ExpectError names the engine error code this step must fail with.
	// Only valid on dispatch steps.
	ExpectError string `yaml:"expectError,omitempty"`
}

// ActionStep is one dispatched action.
type ActionStep struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload,omitempty"`
	Target  string `yaml:"target,omitempty"`
}

// Assertion validates final state or trace contents. Supported types:
// state_equals, trace_contains, trace_order, trace_count.
type Assertion struct {
	Type string `yaml:"type"`

	// state_equals: epic (+ optional target), dotted path, expected value.
	Epic   string `yaml:"epic,omitempty"`
	Target string `yaml:"target,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Expect any    `yaml:"expect,omitempty"`

	// trace_contains: an action type that must appear in some trace.
	Action string `yaml:"action,omitempty"`

	// trace_count: number of updater firings for Epic.
	Count int `yaml:"count,omitempty"`

	// trace_order: epics whose firings must appear in this order, as a
	// subsequence of all recorded updater firings.
	Epics []string `yaml:"epics,omitempty"`
}

// Assertion type constants.
const (
	AssertStateEquals   = "state_equals"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, which catches typos like "assertion:" for "assertions:".
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.dir = filepath.Dir(path)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Dir returns the directory the scenario was loaded from; definition
// paths resolve against it.
func (s *Scenario) Dir() string { return s.dir }

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Definitions) == 0 {
		return fmt.Errorf("definitions list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, def := range s.Definitions {
		p := def
		if !filepath.IsAbs(p) && s.dir != "" {
			p = filepath.Join(s.dir, p)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("definition not found: %s", def)
		}
	}

	for i, step := range s.Steps {
		set := 0
		if step.Dispatch != nil {
			set++
			if step.Dispatch.Type == "" {
				return fmt.Errorf("steps[%d].dispatch: type is required", i)
			}
		}
		if step.Undo > 0 {
			set++
		}
		if step.Redo > 0 {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of dispatch, undo, redo is required", i)
		}
		if step.ExpectError != "" && step.Dispatch == nil {
			return fmt.Errorf("steps[%d]: expectError is only valid on dispatch steps", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertStateEquals:
		if a.Epic == "" {
			return fmt.Errorf("assertions[%d]: epic is required for state_equals", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Epics) == 0 {
			return fmt.Errorf("assertions[%d]: epics list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Epic == "" {
			return fmt.Errorf("assertions[%d]: epic is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
