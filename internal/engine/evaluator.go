package engine

import (
	"fmt"

	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// processUpdater decides whether an updater fires for a triggering
// condition, invokes the handler for each selected instance, stages the
// returned deltas and propagates chained actions.
func (s *Store) processUpdater(u *updater, trigger *condition, a *epic.Action, forcePassive bool) error {
	// Passive action guard: a passive trigger needs at least one
	// non-passive condition that changed (or pattern-matched) this cycle.
	if trigger.passive {
		fire := false
		for _, k := range u.conditions {
			if k == trigger || k.passive {
				continue
			}
			if k.matchedPattern || s.conditionChanged(k) {
				fire = true
				break
			}
		}
		if !fire {
			return nil
		}
	}

	// Conjunction guard: every required condition other than the trigger
	// must have changed this cycle.
	for _, k := range u.conditions {
		if k == trigger || k.passive || !k.required {
			continue
		}
		if k.matchedPattern || s.conditionChanged(k) {
			continue
		}
		return nil
	}

	entry := s.epics[u.epicName]
	if entry == nil {
		return nil
	}
	targets := s.selectInstances(entry, a)

	for _, inst := range targets {
		if !inst.hasStagedState {
			inst.stagedState = inst.state
			inst.hasStagedState = true
		}
		if !inst.hasStagedScope {
			inst.stagedScope = inst.scope
			inst.hasStagedScope = true
		}
		s.epicCache.add(u.epicName, inst.id)

		ctx := &epic.HandlerContext{
			State:             inst.state,
			CurrentCycleState: inst.stagedState,
			Scope:             inst.scope,
			CurrentCycleScope: inst.stagedScope,
			SourceAction:      s.sourceAction,
			CurrentAction:     *a,
		}
		update, err := u.handler(s.values(u.conditions), ctx)
		if err != nil {
			return fmt.Errorf("epic %s updater %d: %w", u.epicName, u.index, err)
		}
		s.traceUpdater(u, trigger, inst)
		if update == nil {
			continue
		}

		// Scope first, then state; only a state write cascades.
		if update.Scope != nil {
			if err := s.applyDelta(u, inst, deltaScope, update.Scope); err != nil {
				return err
			}
		}
		if update.State != nil {
			if err := s.applyDelta(u, inst, deltaState, update.State); err != nil {
				return err
			}
			if !forcePassive && !update.Passive {
				chained := epic.Action{Type: u.epicName, Payload: inst.stagedState}
				if entry.instanced {
					chained.Target = inst.id
				}
				if err := s.processAction(&chained, false); err != nil {
					return err
				}
			}
		}

		for _, qa := range update.Actions {
			na, err := epic.NormalizeAction(qa)
			if err != nil {
				return errInvalidEpicAction(err.Error())
			}
			if err := s.processAction(&na, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// selectInstances resolves the instances an updater run applies to:
// the singleton default, the action's target (created lazily from the
// registration templates), or every existing instance when an instanced
// epic is hit by an untargeted action.
func (s *Store) selectInstances(entry *epicEntry, a *epic.Action) []*instance {
	if !entry.instanced {
		return []*instance{entry.instances[epic.DefaultTarget]}
	}
	if a.Target != "" {
		inst, ok := entry.instances[a.Target]
		if !ok {
			inst = &instance{
				id:    a.Target,
				state: value.Clone(entry.state),
				scope: value.Clone(entry.scope),
			}
			entry.instances[a.Target] = inst
			entry.order = append(entry.order, a.Target)
		}
		return []*instance{inst}
	}
	out := make([]*instance, 0, len(entry.order))
	for _, id := range entry.order {
		out = append(out, entry.instances[id])
	}
	return out
}

// applyDelta merges a handler delta onto the staged entity, refreezes
// the result and records the inverse patches when undo is enabled.
func (s *Store) applyDelta(u *updater, inst *instance, kind deltaKind, delta any) error {
	var cur any
	if kind == deltaState {
		cur = inst.stagedState
	} else {
		cur = inst.stagedScope
	}
	target := value.Unfreeze(cur)
	if epic.IsInitial(target) {
		target = nil
	}
	merged, undoPatch, redoPatch, err := value.Merge(target, delta)
	if err != nil {
		return errInvalidHandlerUpdate(u.epicName, u.index, err)
	}
	frozen := value.Freeze(merged)
	if kind == deltaState {
		inst.stagedState = frozen
	} else {
		inst.stagedScope = frozen
	}
	if s.undoEnabled {
		s.cycleUndo.record(u.epicName, inst.id, kind, undoPatch, redoPatch)
	}
	return nil
}
