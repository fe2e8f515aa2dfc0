package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/avcs06/ricochet/internal/value"
)

// CompileDefinition parses a CUE value into an epic Definition. The CUE
// value is the epic struct itself, addressed as epic.<name>:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`epic: counter: { ... }`)
//	def, err := CompileDefinition(v.LookupPath(cue.ParsePath("epic.counter")))
func CompileDefinition(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}

	// Epic name comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}
	if def.Name == "" {
		return nil, &CompileError{Field: "epic", Message: "epic name label is required", Pos: v.Pos()}
	}

	if stateVal := v.LookupPath(cue.ParsePath("state")); stateVal.Exists() {
		decoded, err := decodeValue(stateVal)
		if err != nil {
			return nil, err
		}
		def.State = decoded
	}
	if scopeVal := v.LookupPath(cue.ParsePath("scope")); scopeVal.Exists() {
		decoded, err := decodeValue(scopeVal)
		if err != nil {
			return nil, err
		}
		def.Scope = decoded
	}
	if instVal := v.LookupPath(cue.ParsePath("instanced")); instVal.Exists() {
		b, err := instVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Instanced = b
	}

	updatersVal := v.LookupPath(cue.ParsePath("updaters"))
	if !updatersVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("epic.%s.updaters", def.Name),
			Message: "at least one updater is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := updatersVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		ud, err := compileUpdater(def.Name, i, iter.Value())
		if err != nil {
			return nil, err
		}
		def.Updaters = append(def.Updaters, *ud)
	}
	if len(def.Updaters) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("epic.%s.updaters", def.Name),
			Message: "at least one updater is required",
			Pos:     updatersVal.Pos(),
		}
	}

	return def, nil
}

func compileUpdater(epicName string, idx int, v cue.Value) (*UpdaterDef, error) {
	field := func(name string) string {
		return fmt.Sprintf("epic.%s.updaters[%d].%s", epicName, idx, name)
	}

	ud := &UpdaterDef{}

	condsVal := v.LookupPath(cue.ParsePath("conditions"))
	if !condsVal.Exists() {
		return nil, &CompileError{Field: field("conditions"), Message: "conditions list is required", Pos: v.Pos()}
	}
	condIter, err := condsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; condIter.Next(); i++ {
		cd, err := compileCondition(field(fmt.Sprintf("conditions[%d]", i)), condIter.Value())
		if err != nil {
			return nil, err
		}
		ud.Conditions = append(ud.Conditions, *cd)
	}
	if len(ud.Conditions) == 0 {
		return nil, &CompileError{Field: field("conditions"), Message: "conditions list must not be empty", Pos: condsVal.Pos()}
	}

	if opsVal := v.LookupPath(cue.ParsePath("ops")); opsVal.Exists() {
		opIter, err := opsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; opIter.Next(); i++ {
			op, err := compileOp(field(fmt.Sprintf("ops[%d]", i)), opIter.Value())
			if err != nil {
				return nil, err
			}
			ud.Ops = append(ud.Ops, *op)
		}
	}

	if passiveVal := v.LookupPath(cue.ParsePath("passive")); passiveVal.Exists() {
		b, err := passiveVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ud.Passive = b
	}

	return ud, nil
}

func compileCondition(field string, v cue.Value) (*ConditionDef, error) {
	// String shorthand: the condition type alone.
	if s, err := v.String(); err == nil {
		if s == "" {
			return nil, &CompileError{Field: field, Message: "condition type must be non-empty", Pos: v.Pos()}
		}
		return &ConditionDef{Type: s}, nil
	}

	cd := &ConditionDef{}
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	t, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if t == "" {
		return nil, &CompileError{Field: field + ".type", Message: "type must be non-empty", Pos: typeVal.Pos()}
	}
	cd.Type = t

	if bv := v.LookupPath(cue.ParsePath("passive")); bv.Exists() {
		if cd.Passive, err = bv.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if bv := v.LookupPath(cue.ParsePath("required")); bv.Exists() {
		if cd.Required, err = bv.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if sv := v.LookupPath(cue.ParsePath("target")); sv.Exists() {
		if cd.Target, err = sv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if sv := v.LookupPath(cue.ParsePath("path")); sv.Exists() {
		if cd.Path, err = sv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return cd, nil
}

func compileOp(field string, v cue.Value) (*Op, error) {
	op := &Op{}

	kindVal := v.LookupPath(cue.ParsePath("op"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: field + ".op", Message: "op kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	op.Kind = kind

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return nil, &CompileError{Field: field + ".path", Message: "path is required", Pos: v.Pos()}
	}
	if op.Path, err = pathVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	if vv := v.LookupPath(cue.ParsePath("value")); vv.Exists() {
		decoded, err := decodeValue(vv)
		if err != nil {
			return nil, err
		}
		op.Value = decoded
	}
	if bv := v.LookupPath(cue.ParsePath("by")); bv.Exists() {
		if op.By, err = bv.Int64(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if fv := v.LookupPath(cue.ParsePath("from")); fv.Exists() {
		n, err := fv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		op.From = int(n)
	}

	return op, nil
}

// decodeValue decodes a CUE value into a plain value tree with numbers
// normalized to the engine's spelling.
func decodeValue(v cue.Value) (any, error) {
	var out any
	if err := v.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return value.NormalizeNumbers(out), nil
}
