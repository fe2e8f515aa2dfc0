package engine

import (
	"errors"
	"log/slog"

	"github.com/avcs06/ricochet/internal/epic"
)

// Dispatch runs one Epic Cycle for an action (a string type or an
// epic.Action).
//
// Re-entrant dispatch from a reducer handler joins the running cycle as
// an ordinary external action. Dispatch from a listener is a hard error.
// A handler error rolls back every staged write and is returned after
// cleanup; listener errors are collected and returned joined, with the
// commit untouched.
func (s *Store) Dispatch(action any) error {
	a, err := epic.NormalizeAction(action)
	if err != nil {
		return errInvalidEpicAction(err.Error())
	}
	if s.afterCycle {
		return errNoDispatchInEpicListener()
	}
	if s.inCycle {
		return s.processAction(&a, true)
	}

	s.beginCycle(a)
	processingErr := s.processAction(&a, true)
	s.inCycle = false

	if processingErr != nil {
		s.rollback()
		s.traceOutcome(TraceRollback)
	} else {
		s.commit()
		s.traceOutcome(TraceCommit)
	}

	// Listeners run against canonical post-cycle state. After a
	// rollback nothing has changed, so no listener is notified.
	notified := s.epicCache
	if processingErr != nil {
		notified = nil
	}
	s.afterCycle = true
	listenerErrs := s.notifyListeners(notified, s.sourceAction)
	s.afterCycle = false

	s.finishCycle()

	if processingErr != nil {
		slog.Error("dispatch rolled back",
			"type", a.Type,
			"cycle", s.cycleToken,
			"error", processingErr,
		)
		return processingErr
	}
	if len(listenerErrs) > 0 {
		return errors.Join(listenerErrs...)
	}
	return nil
}

func (s *Store) beginCycle(a epic.Action) {
	s.inCycle = true
	s.sourceAction = a
	s.cycleToken = s.tokens.Generate()
	s.actionCache = make(map[string]any)
	s.conditionCache = s.conditionCache[:0]
	s.epicCache = newTouchedSet()
	s.cycleUndo = make(undoEntry)
	s.trace = &Trace{Token: s.cycleToken}
	slog.Debug("cycle started", "type", a.Type, "cycle", s.cycleToken)
}

// commit promotes every staged condition value and instance entity to
// canonical, then appends the cycle's undo entry.
func (s *Store) commit() {
	for _, c := range s.conditionCache {
		if c.hasStaged {
			c.value = c.staged
		}
		c.clearTransient()
	}
	for _, name := range s.epicCache.names {
		entry := s.epics[name]
		if entry == nil {
			continue
		}
		for _, id := range s.epicCache.ids[name] {
			inst := entry.instances[id]
			if inst == nil {
				continue
			}
			if inst.hasStagedState {
				inst.state = inst.stagedState
			}
			if inst.hasStagedScope {
				inst.scope = inst.stagedScope
			}
			inst.clearStaged()
		}
	}
	if s.undoEnabled && len(s.cycleUndo) > 0 {
		// Evict only when the stack is exactly at its bound.
		if len(s.undoStack) == s.maxUndoStack {
			s.undoStack = s.undoStack[1:]
		}
		s.undoStack = append(s.undoStack, s.cycleUndo)
		s.redoStack = nil
	}
}

// rollback discards every staged value, leaving canonical state and the
// undo stack untouched.
func (s *Store) rollback() {
	for _, c := range s.conditionCache {
		c.clearTransient()
	}
	for _, name := range s.epicCache.names {
		entry := s.epics[name]
		if entry == nil {
			continue
		}
		for _, id := range s.epicCache.ids[name] {
			if inst := entry.instances[id]; inst != nil {
				inst.clearStaged()
			}
		}
	}
}

func (s *Store) finishCycle() {
	s.lastTrace = s.trace
	s.trace = nil
	s.cycleUndo = nil
	s.conditionCache = s.conditionCache[:0]
	s.epicCache = nil
	s.actionCache = nil
	slog.Debug("cycle finished", "cycle", s.cycleToken)
}
