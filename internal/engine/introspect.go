package engine

import (
	"errors"
	"fmt"

	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// ErrDebugDisabled is returned by introspection accessors on a store
// created without the debug option.
var ErrDebugDisabled = errors.New("introspection requires the debug option")

// ConditionInfo is a structural copy of one compiled condition.
type ConditionInfo struct {
	Type     string
	Passive  bool
	Required bool
	Target   string
	Value    any
}

// UpdaterInfo is a structural copy of one compiled updater.
type UpdaterInfo struct {
	Epic       string
	Index      int
	Conditions []ConditionInfo
}

// ListenerInfo is a structural copy of one registered listener.
type ListenerInfo struct {
	Conditions []ConditionInfo
}

// EpicState returns a copy of a singleton epic's state. An unwritten
// (Initial) state surfaces as nil; the sentinel never crosses the public
// boundary.
func (s *Store) EpicState(name string) (any, error) {
	return s.instanceEntity(name, epic.DefaultTarget, deltaState)
}

// EpicScope returns a copy of a singleton epic's scope.
func (s *Store) EpicScope(name string) (any, error) {
	return s.instanceEntity(name, epic.DefaultTarget, deltaScope)
}

// InstanceState returns a copy of one instance's state.
func (s *Store) InstanceState(name, id string) (any, error) {
	return s.instanceEntity(name, id, deltaState)
}

// InstanceScope returns a copy of one instance's scope.
func (s *Store) InstanceScope(name, id string) (any, error) {
	return s.instanceEntity(name, id, deltaScope)
}

func (s *Store) instanceEntity(name, id string, kind deltaKind) (any, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}
	entry := s.epics[name]
	if entry == nil {
		return nil, fmt.Errorf("unknown epic %q", name)
	}
	inst := entry.instances[id]
	if inst == nil {
		return nil, fmt.Errorf("epic %q has no instance %q", name, id)
	}
	v := inst.state
	if kind == deltaScope {
		v = inst.scope
	}
	if epic.IsInitial(v) {
		return nil, nil
	}
	return value.Clone(v), nil
}

// UpdaterInfos returns structural copies of an epic's compiled updaters,
// in registration order.
func (s *Store) UpdaterInfos(name string) ([]UpdaterInfo, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}
	entry := s.epics[name]
	if entry == nil {
		return nil, fmt.Errorf("unknown epic %q", name)
	}
	out := make([]UpdaterInfo, 0, len(entry.updaters))
	for _, u := range entry.updaters {
		out = append(out, UpdaterInfo{
			Epic:       u.epicName,
			Index:      u.index,
			Conditions: conditionInfos(u.conditions),
		})
	}
	return out, nil
}

// ListenerInfos returns structural copies of the listeners registered
// under an exact condition type, across all targets.
func (s *Store) ListenerInfos(conditionType string) ([]ListenerInfo, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}
	byTarget := s.listeners[conditionType]
	var out []ListenerInfo
	for _, target := range sortedKeys(byTarget) {
		for _, l := range byTarget[target] {
			out = append(out, ListenerInfo{Conditions: conditionInfos(l.conditions)})
		}
	}
	return out, nil
}

// LastTrace returns the trace of the most recently finished cycle, or
// nil when no cycle has run.
func (s *Store) LastTrace() (*Trace, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}
	if s.lastTrace == nil {
		return nil, nil
	}
	cp := &Trace{Token: s.lastTrace.Token, Events: make([]TraceEvent, len(s.lastTrace.Events))}
	copy(cp.Events, s.lastTrace.Events)
	return cp, nil
}

func conditionInfos(conds []*condition) []ConditionInfo {
	out := make([]ConditionInfo, 0, len(conds))
	for _, c := range conds {
		v := c.value
		if epic.IsInitial(v) {
			v = nil
		}
		out = append(out, ConditionInfo{
			Type:     c.typ,
			Passive:  c.passive,
			Required: c.required,
			Target:   publicTarget(c.id),
			Value:    value.Clone(v),
		})
	}
	return out
}

func publicTarget(id string) string {
	if id == epic.DefaultTarget {
		return ""
	}
	return id
}
