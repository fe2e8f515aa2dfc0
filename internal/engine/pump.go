package engine

import (
	"log/slog"

	"github.com/avcs06/ricochet/internal/epic"
)

// processAction pushes one action through the updater indices. Direct
// updaters run before pattern updaters; chained Epic actions re-enter
// here depth-first from the evaluator.
//
// external marks user-originated actions (including handler-queued
// ones); internal actions are the synthetic Epic actions produced by
// state staging.
func (s *Store) processAction(a *epic.Action, external bool) error {
	if external {
		if _, ok := s.epics[a.Type]; ok {
			return errInvalidEpicAction("external action type collides with a registered epic: " + a.Type)
		}
		if _, seen := s.actionCache[a.Type]; seen {
			return errNoRepeatedExternalAction(a.Type)
		}
	}
	s.actionCache[a.Type] = a.Payload
	s.traceAction(a, external)
	slog.Debug("processing action", "type", a.Type, "external", external, "cycle", s.cycleToken)

	// Direct updaters, in registration order. The slice is copied:
	// depth-first recursion must not observe an index mutated by an
	// unregister that a future change might allow mid-cycle.
	for _, u := range snapshot(s.updaters[a.Type]) {
		c := findCondition(u, a.Type)
		if c == nil {
			continue
		}
		next := c.selector(a.Payload, a.Type)
		if !external && s.valuesEqual(next, c.effective()) {
			// Unchanged selector values never trigger on epic-chained
			// actions; this is the sole cycle-termination guard.
			continue
		}
		c.staged = next
		c.hasStaged = true
		s.cacheCondition(c)
		if err := s.processUpdater(u, c, a, false); err != nil {
			return err
		}
	}

	if s.patterns {
		for _, p := range snapshot(s.patternUpdaterOrder) {
			if !s.matchesPattern(p, a.Type) {
				continue
			}
			for _, u := range snapshot(s.patternUpdaters[p]) {
				c := findCondition(u, p)
				if c == nil {
					continue
				}
				c.staged = c.selector(a.Payload, a.Type)
				c.hasStaged = true
				c.matchedPattern = true
				s.cacheCondition(c)
				// The universal pattern is forced passive: its epic
				// action is suppressed to break trivially universal
				// cycles.
				if err := s.processUpdater(u, c, a, p == "*"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// cacheCondition adds a condition to the cycle's condition cache exactly
// once; the cache drives promotion on commit and discard on rollback.
func (s *Store) cacheCondition(c *condition) {
	if c.cached {
		return
	}
	c.cached = true
	s.conditionCache = append(s.conditionCache, c)
}

func snapshot[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
