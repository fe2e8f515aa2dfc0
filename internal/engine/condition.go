package engine

import "github.com/avcs06/ricochet/internal/epic"

// condition is the compiled runtime form of a condition descriptor.
//
// value is the last committed selector value. staged (the cycle-local
// "_value") and matchedPattern live only within a cycle and are reset on
// cycle exit; cached marks membership in the running cycle's condition
// cache so a condition is promoted or discarded exactly once.
type condition struct {
	typ      string
	selector epic.Selector
	passive  bool
	required bool
	id       string
	pattern  bool

	value          any
	staged         any
	hasStaged      bool
	matchedPattern bool
	cached         bool
}

// effective returns the cycle-staged value when present, else the last
// committed value.
func (c *condition) effective() any {
	if c.hasStaged {
		return c.staged
	}
	return c.value
}

// clearTransient resets the per-cycle fields without touching the
// committed value.
func (c *condition) clearTransient() {
	c.staged = nil
	c.hasStaged = false
	c.matchedPattern = false
	c.cached = false
}

// conditionChanged reports whether the condition's staged value differs
// from its committed value.
func (s *Store) conditionChanged(c *condition) bool {
	if !c.hasStaged {
		return false
	}
	return !s.valuesEqual(c.staged, c.value)
}

// valuesEqual compares two condition values. Initial compares by
// identity only; everything else goes through the store's pluggable deep
// equality.
func (s *Store) valuesEqual(a, b any) bool {
	if epic.IsInitial(a) || epic.IsInitial(b) {
		return epic.IsInitial(a) && epic.IsInitial(b)
	}
	return s.equal(a, b)
}

// compileConditions converts normalized condition descriptors into
// runtime conditions, validating the pattern rules. requireActive
// enforces the updater invariant of at least one non-passive condition;
// listeners compile without it.
func (s *Store) compileConditions(epicName string, updaterIdx int, vec []epic.Condition, requireActive bool) ([]*condition, error) {
	out := make([]*condition, 0, len(vec))
	active := false
	for ci, cd := range vec {
		if cd.Type == "" {
			return nil, errInvalidConditionType(epicName, updaterIdx, ci, "must be a non-empty string")
		}
		pat := isPattern(cd.Type)
		if pat && !s.patterns {
			return nil, errInvalidConditionType(epicName, updaterIdx, ci, "pattern conditions require the patterns option")
		}
		sel := cd.Selector
		if sel == nil {
			sel = epic.IdentitySelector
		}
		out = append(out, &condition{
			typ:      cd.Type,
			selector: epic.MemoizeSelector(sel, s.valuesEqual),
			passive:  cd.Passive,
			required: cd.Required,
			id:       cd.ID,
			pattern:  pat,
			value:    epic.Initial,
		})
		if !cd.Passive {
			active = true
		}
	}
	if requireActive && !active {
		return nil, errNoPassiveUpdaters(epicName, updaterIdx)
	}
	return out, nil
}

// values builds the handler-param view over a condition list: the
// effective value per condition, with Initial surfaced as nil.
func (s *Store) values(conds []*condition) []any {
	vals := make([]any, len(conds))
	for i, c := range conds {
		v := c.effective()
		if epic.IsInitial(v) {
			v = nil
		}
		vals[i] = v
	}
	return vals
}
