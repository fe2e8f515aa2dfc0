package compiler

import (
	"fmt"
	"strings"

	"github.com/avcs06/ricochet/internal/epic"
)

// Definition is a compiled epic definition, ready to be lowered into a
// registrable epic via Build.
type Definition struct {
	Name      string
	State     any
	Scope     any
	Instanced bool
	Updaters  []UpdaterDef
}

// UpdaterDef declares one reducer: its conditions and the ops its
// synthesized handler performs. Passive suppresses the epic action the
// state write would otherwise cascade.
type UpdaterDef struct {
	Conditions []ConditionDef
	Ops        []Op
	Passive    bool
}

// ConditionDef is the declarative condition form. Path compiles into a
// field selector over the observed payload; Target scopes the condition
// to one instance.
type ConditionDef struct {
	Type     string
	Passive  bool
	Required bool
	Target   string
	Path     string
}

// Op kinds supported by synthesized handlers.
const (
	OpSet       = "set"
	OpIncrement = "increment"
	OpAppend    = "append"
	OpCopy      = "copy"
)

// Op is one state mutation of a synthesized handler. Path addresses a
// dotted location in the epic's state. By defaults to 1 for increment;
// From is the condition index a copy reads its value from.
type Op struct {
	Kind  string
	Path  string
	Value any
	By    int64
	From  int
}

// Build lowers a definition into a registrable epic.
func Build(def *Definition) (epic.Epic, error) {
	updaters := make([]epic.Reducer, 0, len(def.Updaters))
	for ui, ud := range def.Updaters {
		conds := make([]any, 0, len(ud.Conditions))
		for _, cd := range ud.Conditions {
			c := epic.Condition{
				Type:     cd.Type,
				Passive:  cd.Passive,
				Required: cd.Required,
				ID:       cd.Target,
			}
			if cd.Path != "" {
				c.Selector = pathSelector(cd.Path)
			}
			conds = append(conds, c)
		}
		handler, err := buildHandler(def.Name, ui, ud)
		if err != nil {
			return epic.Epic{}, err
		}
		updaters = append(updaters, epic.Reducer{Conditions: conds, Handler: handler})
	}
	return epic.Epic{
		Name:      def.Name,
		State:     def.State,
		Scope:     def.Scope,
		Updaters:  updaters,
		Instanced: def.Instanced,
	}, nil
}

// buildHandler synthesizes the reducer closure for one updater's ops.
func buildHandler(epicName string, updaterIdx int, ud UpdaterDef) (epic.Handler, error) {
	for oi, op := range ud.Ops {
		switch op.Kind {
		case OpSet, OpIncrement, OpAppend, OpCopy:
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("epic.%s.updaters[%d].ops[%d].op", epicName, updaterIdx, oi),
				Message: fmt.Sprintf("unknown op %q", op.Kind),
			}
		}
		if op.Path == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("epic.%s.updaters[%d].ops[%d].path", epicName, updaterIdx, oi),
				Message: "path is required",
			}
		}
		if op.Kind == OpCopy && op.From >= len(ud.Conditions) {
			return nil, &CompileError{
				Field:   fmt.Sprintf("epic.%s.updaters[%d].ops[%d].from", epicName, updaterIdx, oi),
				Message: fmt.Sprintf("condition index %d out of range", op.From),
			}
		}
	}

	ops := ud.Ops
	passive := ud.Passive
	return func(values []any, ctx *epic.HandlerContext) (*epic.HandlerUpdate, error) {
		var patch map[string]any
		for _, op := range ops {
			var v any
			switch op.Kind {
			case OpSet:
				v = op.Value
			case OpIncrement:
				by := op.By
				if by == 0 {
					by = 1
				}
				v = toInt64(lookupPath(stateRoot(ctx), op.Path)) + by
			case OpAppend:
				cur, _ := lookupPath(stateRoot(ctx), op.Path).([]any)
				next := make([]any, 0, len(cur)+1)
				next = append(next, cur...)
				v = append(next, op.Value)
			case OpCopy:
				if op.From >= 0 && op.From < len(values) {
					v = values[op.From]
				}
			}
			if patch == nil {
				patch = make(map[string]any)
			}
			setPath(patch, op.Path, v)
		}
		update := &epic.HandlerUpdate{Passive: passive}
		if patch != nil {
			update.State = patch
		}
		return update, nil
	}, nil
}

// pathSelector compiles a dotted field path into a payload selector.
func pathSelector(path string) epic.Selector {
	return func(payload any, _ string) any {
		return lookupPath(payload, path)
	}
}

// stateRoot returns the cycle-staged state as a lookup root, with the
// unwritten sentinel mapped to nil.
func stateRoot(ctx *epic.HandlerContext) any {
	v := ctx.CurrentCycleState
	if epic.IsInitial(v) {
		return nil
	}
	return v
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

func setPath(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		sub, ok := m[part].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			m[part] = sub
		}
		m = sub
	}
	m[parts[len(parts)-1]] = v
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
