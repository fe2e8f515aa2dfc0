package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// Register compiles and registers an epic. Compilation is all-or-nothing:
// a rejected condition leaves no partial index entries behind.
func (s *Store) Register(e epic.Epic) error {
	if s.inCycle || s.afterCycle {
		return fmt.Errorf("register %q: registries are immutable during a dispatch cycle", e.Name)
	}
	if e.Name == "" {
		return fmt.Errorf("epic name must be a non-empty string")
	}
	if _, ok := s.epics[e.Name]; ok {
		return errDuplicateEpic(e.Name)
	}

	entry := &epicEntry{
		name:      e.Name,
		instanced: e.Instanced,
		instances: make(map[string]*instance),
	}
	if e.Instanced {
		entry.state = value.Freeze(orInitial(e.State))
		entry.scope = value.Freeze(orInitial(e.Scope))
	} else {
		entry.instances[epic.DefaultTarget] = &instance{
			id:    epic.DefaultTarget,
			state: value.Freeze(orInitial(e.State)),
			scope: value.Freeze(orInitial(e.Scope)),
		}
		entry.order = []string{epic.DefaultTarget}
	}

	var compiled []*updater
	for ri, r := range e.Updaters {
		if r.Handler == nil {
			return fmt.Errorf("epic %q updater %d: handler is required", e.Name, ri)
		}
		vectors, err := epic.SplitConditions(r.Conditions)
		if err != nil {
			return liftCompileError(e.Name, ri, err)
		}
		for _, vec := range vectors {
			conds, err := s.compileConditions(e.Name, ri, vec, true)
			if err != nil {
				return err
			}
			compiled = append(compiled, &updater{
				epicName:   e.Name,
				index:      ri,
				conditions: conds,
				handler:    r.Handler,
			})
		}
	}

	// Commit: the entry and every condition index entry.
	s.epics[e.Name] = entry
	entry.updaters = compiled
	for _, u := range compiled {
		for _, c := range u.conditions {
			if c.pattern {
				if _, ok := s.patternUpdaters[c.typ]; !ok {
					s.patternUpdaterOrder = append(s.patternUpdaterOrder, c.typ)
					s.ensurePattern(c.typ)
				}
				s.patternUpdaters[c.typ] = append(s.patternUpdaters[c.typ], u)
			} else {
				s.updaters[c.typ] = append(s.updaters[c.typ], u)
			}
		}
	}

	slog.Debug("epic registered",
		"epic", e.Name,
		"updaters", len(compiled),
		"instanced", e.Instanced,
	)
	return nil
}

// Unregister removes an epic and filters every updater index entry it
// owns. Listeners observing the epic stay registered; they simply stop
// firing.
func (s *Store) Unregister(name string) error {
	if s.inCycle || s.afterCycle {
		return fmt.Errorf("unregister %q: registries are immutable during a dispatch cycle", name)
	}
	if _, ok := s.epics[name]; !ok {
		return fmt.Errorf("unregister %q: unknown epic", name)
	}
	delete(s.epics, name)

	for typ, us := range s.updaters {
		s.updaters[typ] = dropOwned(us, name)
		if len(s.updaters[typ]) == 0 {
			delete(s.updaters, typ)
		}
	}
	for typ, us := range s.patternUpdaters {
		s.patternUpdaters[typ] = dropOwned(us, name)
		if len(s.patternUpdaters[typ]) == 0 {
			delete(s.patternUpdaters, typ)
			s.patternUpdaterOrder = dropString(s.patternUpdaterOrder, typ)
		}
	}

	slog.Debug("epic unregistered", "epic", name)
	return nil
}

func dropOwned(us []*updater, epicName string) []*updater {
	out := us[:0]
	for _, u := range us {
		if u.epicName != epicName {
			out = append(out, u)
		}
	}
	return out
}

func dropString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// listenerIndexKey locates one index slice a listener was appended to,
// so the unsubscribe thunk can filter it out again.
type listenerIndexKey struct {
	pattern bool
	typ     string
	target  string
}

// AddListener registers a listener over the given conditions and returns
// an idempotent unsubscribe thunk. Conditions accept the same shapes as
// reducer conditions, including disjunction.
func (s *Store) AddListener(conditions []any, handler epic.Listener) (func(), error) {
	if s.inCycle || s.afterCycle {
		return nil, errors.New("addListener: registries are immutable during a dispatch cycle")
	}
	if handler == nil {
		return nil, errors.New("listener handler is required")
	}
	vectors, err := epic.SplitConditions(conditions)
	if err != nil {
		return nil, liftCompileError("", -1, err)
	}

	type registration struct {
		l    *listener
		keys []listenerIndexKey
	}
	var regs []registration

	for _, vec := range vectors {
		conds, err := s.compileConditions("", -1, vec, false)
		if err != nil {
			return nil, err
		}
		l := &listener{conditions: conds, handler: handler, active: true}
		reg := registration{l: l}
		for _, c := range conds {
			target := c.id
			if target == "" {
				target = epic.DefaultTarget
			}
			if c.pattern {
				byTarget := s.patternListeners[c.typ]
				if byTarget == nil {
					byTarget = make(map[string][]*listener)
					s.patternListeners[c.typ] = byTarget
					s.patternListenerOrder = append(s.patternListenerOrder, c.typ)
					s.ensurePattern(c.typ)
				}
				byTarget[target] = append(byTarget[target], l)
				reg.keys = append(reg.keys, listenerIndexKey{pattern: true, typ: c.typ, target: target})
			} else {
				byTarget := s.listeners[c.typ]
				if byTarget == nil {
					byTarget = make(map[string][]*listener)
					s.listeners[c.typ] = byTarget
				}
				byTarget[target] = append(byTarget[target], l)
				reg.keys = append(reg.keys, listenerIndexKey{typ: c.typ, target: target})
			}
		}
		regs = append(regs, reg)
	}

	unsubscribed := false
	return func() {
		if unsubscribed {
			return
		}
		unsubscribed = true
		for _, reg := range regs {
			reg.l.active = false
			for _, k := range reg.keys {
				var byTarget map[string][]*listener
				if k.pattern {
					byTarget = s.patternListeners[k.typ]
				} else {
					byTarget = s.listeners[k.typ]
				}
				if byTarget == nil {
					continue
				}
				byTarget[k.target] = dropListener(byTarget[k.target], reg.l)
				if len(byTarget[k.target]) == 0 {
					delete(byTarget, k.target)
				}
				if len(byTarget) == 0 {
					if k.pattern {
						delete(s.patternListeners, k.typ)
						s.patternListenerOrder = dropString(s.patternListenerOrder, k.typ)
					} else {
						delete(s.listeners, k.typ)
					}
				}
			}
		}
	}, nil
}

func dropListener(ls []*listener, l *listener) []*listener {
	out := ls[:0]
	for _, v := range ls {
		if v != l {
			out = append(out, v)
		}
	}
	return out
}

// liftCompileError maps a condition CompileError onto the coded engine
// error carrying epic and updater context.
func liftCompileError(epicName string, updaterIdx int, err error) error {
	var ce *epic.CompileError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Field {
	case "selector":
		return errInvalidConditionSelector(epicName, updaterIdx, ce.Index, ce.Message)
	default:
		return errInvalidConditionType(epicName, updaterIdx, ce.Index, ce.Message)
	}
}

// orInitial substitutes the Initial sentinel for an absent registration
// value.
func orInitial(v any) any {
	if v == nil {
		return epic.Initial
	}
	return v
}

// findCondition locates the condition of an updater whose type matches
// the triggering action type (or pattern key).
func findCondition(u *updater, typ string) *condition {
	for _, c := range u.conditions {
		if c.typ == typ {
			return c
		}
	}
	return nil
}
