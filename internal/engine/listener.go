package engine

import (
	"fmt"

	"github.com/avcs06/ricochet/internal/epic"
)

// notifyListeners fans committed changes out to the listeners observing
// the touched epics. Errors are captured per listener and returned as a
// batch; one failing listener never starves the rest.
//
// Listener condition values promote to their staged values at the end of
// the pass, so cross-cycle change detection sees each committed value
// exactly once.
func (s *Store) notifyListeners(cache *touchedSet, source epic.Action) []error {
	if cache == nil || cache.empty() {
		return nil
	}

	var errs []error
	var visited []*listener
	var visitedConds []*condition

	for _, name := range cache.names {
		var matched []string
		if s.patterns {
			for _, p := range s.patternListenerOrder {
				if s.matchesPattern(p, name) {
					matched = append(matched, p)
				}
			}
		}

		for _, id := range cache.ids[name] {
			var candidates []*listener
			if byTarget := s.listeners[name]; byTarget != nil {
				if ls, ok := byTarget[id]; ok {
					candidates = append(candidates, ls...)
				} else {
					candidates = append(candidates, byTarget[epic.DefaultTarget]...)
				}
			}
			for _, p := range matched {
				byTarget := s.patternListeners[p]
				if byTarget == nil {
					continue
				}
				if ls, ok := byTarget[id]; ok {
					candidates = append(candidates, ls...)
				} else {
					candidates = append(candidates, byTarget[epic.DefaultTarget]...)
				}
			}

			for _, l := range candidates {
				if !l.active || l.processed {
					continue
				}
				l.processed = true
				visited = append(visited, l)

				hasRequired := false
				hasChangedActive := false
				hasUnchangedRequired := false
				for _, k := range l.conditions {
					s.evalListenerCondition(cache, k, id)
					visitedConds = append(visitedConds, k)
					changed := k.matchedPattern || s.conditionChanged(k)
					if k.required {
						hasRequired = true
						if !changed {
							hasUnchangedRequired = true
						}
					}
					if !k.passive && changed {
						hasChangedActive = true
					}
				}

				fire := hasChangedActive
				if hasRequired {
					fire = !hasUnchangedRequired
				}
				if !fire {
					continue
				}

				if err := l.handler(s.values(l.conditions), &epic.ListenerContext{SourceAction: source}); err != nil {
					errs = append(errs, fmt.Errorf("epic listener: %w", err))
				}
			}
		}
	}

	for _, k := range visitedConds {
		if k.hasStaged {
			k.value = k.staged
		}
		k.clearTransient()
	}
	for _, l := range visited {
		l.processed = false
	}
	return errs
}

// evalListenerCondition stages a listener condition's selector value
// from the epic(s) it observes. curID is the touched instance being
// notified; a condition without an explicit id follows it when the epic
// has such an instance.
//
// Epics whose state is still Initial stage nothing, so a listener over
// an unwritten epic never reads as changed. An instance not touched in
// this pass is staged as its own baseline, so it never reads as changed
// either.
func (s *Store) evalListenerCondition(cache *touchedSet, k *condition, curID string) {
	if k.pattern {
		for _, name := range cache.names {
			if !s.matchesPattern(k.typ, name) {
				continue
			}
			if entry := s.epics[name]; entry != nil {
				if inst := resolveInstance(entry, k.id, curID); inst != nil && !epic.IsInitial(inst.state) {
					k.staged = k.selector(inst.state, name)
					k.hasStaged = true
					k.matchedPattern = true
				}
			}
		}
		return
	}

	entry := s.epics[k.typ]
	if entry == nil {
		return
	}
	inst := resolveInstance(entry, k.id, curID)
	if inst == nil || epic.IsInitial(inst.state) {
		return
	}
	k.staged = k.selector(inst.state, k.typ)
	k.hasStaged = true
	if !cache.seen[k.typ][inst.id] {
		k.value = k.staged
	}
}

// resolveInstance picks the instance a listener condition reads:
// the explicit id when set, else the instance being notified, else the
// singleton default.
func resolveInstance(entry *epicEntry, condID, curID string) *instance {
	if condID != "" {
		return entry.instances[condID]
	}
	if inst, ok := entry.instances[curID]; ok {
		return inst
	}
	return entry.instances[epic.DefaultTarget]
}
