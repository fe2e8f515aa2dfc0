package epic

import "fmt"

// Selector derives the observed value of a condition from an action
// payload (or, for conditions over other epics, from that epic's state).
// Selectors must be pure: the engine memoizes and replays them freely.
type Selector func(payload any, actionType string) any

// Condition is the normalized descriptor form. Type is an action type,
// an epic name, or a wildcard pattern (contains '*'). A nil Selector
// means identity. ID scopes the condition to one instance of an
// instanced epic.
type Condition struct {
	Type     string
	Selector Selector
	Passive  bool
	Required bool
	ID       string
}

// CompileError reports a condition descriptor the compiler rejected.
// Field identifies the offending part ("type" or "selector"); Index is
// the condition's position within the reducer's condition list, or -1
// when unknown.
type CompileError struct {
	Field   string
	Index   int
	Message string
}

func (e *CompileError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("condition %d: %s: %s", e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("condition: %s: %s", e.Field, e.Message)
}

// NormalizeCondition converts the accepted condition shapes - a bare
// string or a Condition - into normalized object form.
func NormalizeCondition(v any) (Condition, error) {
	switch c := v.(type) {
	case string:
		if c == "" {
			return Condition{}, &CompileError{Field: "type", Index: -1, Message: "must be a non-empty string"}
		}
		return Condition{Type: c}, nil
	case Condition:
		if c.Type == "" {
			return Condition{}, &CompileError{Field: "type", Index: -1, Message: "must be a non-empty string"}
		}
		return c, nil
	case *Condition:
		if c == nil || c.Type == "" {
			return Condition{}, &CompileError{Field: "type", Index: -1, Message: "must be a non-empty string"}
		}
		return *c, nil
	default:
		return Condition{}, &CompileError{Field: "type", Index: -1, Message: fmt.Sprintf("unsupported condition shape %T", v)}
	}
}

// SplitConditions expands a reducer's condition list into fully
// conjunctive condition vectors. A nested array is a disjunction (AnyOf):
// each alternative produces one vector per combination across all
// disjunctions. Expansion is depth-first on the first disjunction found,
// so the first disjunction's order dominates the result order.
//
// The flat case returns a single vector. Disjunction is resolved here,
// at compile time; the runtime matcher never sees it.
func SplitConditions(inputs []any) ([][]Condition, error) {
	for i, in := range inputs {
		alts, ok := asAlternatives(in)
		if !ok {
			continue
		}
		if len(alts) == 0 {
			return nil, &CompileError{Field: "type", Index: i, Message: "disjunction must not be empty"}
		}
		var out [][]Condition
		for _, alt := range alts {
			sub := make([]any, len(inputs))
			copy(sub, inputs)
			sub[i] = alt
			vecs, err := SplitConditions(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, vecs...)
		}
		return out, nil
	}

	vec := make([]Condition, 0, len(inputs))
	for i, in := range inputs {
		c, err := NormalizeCondition(in)
		if err != nil {
			if ce, ok := err.(*CompileError); ok && ce.Index < 0 {
				ce.Index = i
			}
			return nil, err
		}
		vec = append(vec, c)
	}
	return [][]Condition{vec}, nil
}

// asAlternatives unwraps the disjunction shapes accepted inside a
// condition list.
func asAlternatives(v any) ([]any, bool) {
	switch alts := v.(type) {
	case []any:
		return alts, true
	case []string:
		out := make([]any, len(alts))
		for i, s := range alts {
			out[i] = s
		}
		return out, true
	case []Condition:
		out := make([]any, len(alts))
		for i, c := range alts {
			out[i] = c
		}
		return out, true
	default:
		return nil, false
	}
}

// MemoizeSelector wraps a selector with a single-entry cache keyed on
// the last (payload, actionType) pair. Equal consecutive inputs return
// the identical result value, which lets the engine deduplicate via
// reference-style comparison.
func MemoizeSelector(s Selector, eq func(a, b any) bool) Selector {
	var (
		cached      bool
		lastPayload any
		lastType    string
		lastResult  any
	)
	return func(payload any, actionType string) any {
		if cached && lastType == actionType && eq(lastPayload, payload) {
			return lastResult
		}
		lastPayload = payload
		lastType = actionType
		lastResult = s(payload, actionType)
		cached = true
		return lastResult
	}
}

// IdentitySelector is the default selector: the payload itself.
func IdentitySelector(payload any, _ string) any { return payload }
