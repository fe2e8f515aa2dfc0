package engine

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// Source action types reported to listeners by undo and redo.
const (
	ActionTypeUndo = "STORE_UNDO"
	ActionTypeRedo = "STORE_REDO"
)

// ErrUndoDisabled is returned by Undo and Redo on a store created
// without the undo option.
var ErrUndoDisabled = errors.New("undo/redo is not enabled for this store")

// Undo pops the newest cycle entry off the undo stack, applies its
// inverse patches to canonical state and notifies listeners. No reducer
// runs; this is a pure state restoration. A no-op when the stack is
// empty.
func (s *Store) Undo() error {
	return s.applyHistory(true)
}

// Redo reapplies the newest undone cycle. A no-op when the redo stack is
// empty.
func (s *Store) Redo() error {
	return s.applyHistory(false)
}

func (s *Store) applyHistory(undo bool) error {
	if !s.undoEnabled {
		return ErrUndoDisabled
	}
	if s.inCycle || s.afterCycle {
		return errNoDispatchInEpicListener()
	}

	var entry undoEntry
	var sourceType string
	if undo {
		if len(s.undoStack) == 0 {
			return nil
		}
		entry = s.undoStack[len(s.undoStack)-1]
		s.undoStack = s.undoStack[:len(s.undoStack)-1]
		sourceType = ActionTypeUndo
	} else {
		if len(s.redoStack) == 0 {
			return nil
		}
		entry = s.redoStack[len(s.redoStack)-1]
		s.redoStack = s.redoStack[:len(s.redoStack)-1]
		sourceType = ActionTypeRedo
	}

	cache := newTouchedSet()
	for _, name := range sortedKeys(entry) {
		owner := s.epics[name]
		if owner == nil {
			continue
		}
		byID := entry[name]
		for _, id := range sortedKeys(byID) {
			inst := owner.instances[id]
			if inst == nil {
				continue
			}
			patches := byID[id]
			if patches.State != nil {
				inst.state = restoreEntity(inst.state, patches.State, undo)
			}
			if patches.Scope != nil {
				inst.scope = restoreEntity(inst.scope, patches.Scope, undo)
			}
			cache.add(name, id)
		}
	}

	if undo {
		s.redoStack = append(s.redoStack, entry)
	} else {
		s.undoStack = append(s.undoStack, entry)
	}
	slog.Debug("history applied", "kind", sourceType, "epics", len(cache.names))

	s.afterCycle = true
	errs := s.notifyListeners(cache, epic.Action{Type: sourceType})
	s.afterCycle = false

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// restoreEntity applies the recorded inverse patch for one entity and
// refreezes the result.
func restoreEntity(current any, p *entityPatch, undo bool) any {
	patch := p.Redo
	if undo {
		patch = p.Undo
	}
	target := value.Unfreeze(current)
	if epic.IsInitial(target) {
		target = nil
	}
	return value.Freeze(value.Apply(target, patch))
}

// UndoDepth returns the number of entries on the undo stack.
func (s *Store) UndoDepth() int { return len(s.undoStack) }

// RedoDepth returns the number of entries on the redo stack.
func (s *Store) RedoDepth() int { return len(s.redoStack) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
