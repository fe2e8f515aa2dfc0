package engine

import (
	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// TraceEventKind distinguishes trace event rows.
type TraceEventKind string

const (
	// TraceAction records an action entering the pump.
	TraceAction TraceEventKind = "action"
	// TraceUpdater records a handler invocation.
	TraceUpdater TraceEventKind = "updater"
	// TraceCommit and TraceRollback record the cycle outcome.
	TraceCommit   TraceEventKind = "commit"
	TraceRollback TraceEventKind = "rollback"
)

// TraceEvent is one row of a cycle trace. Seq comes from the store's
// logical clock and is monotonic across cycles.
type TraceEvent struct {
	Seq       int64
	Kind      TraceEventKind
	Action    string
	External  bool
	Payload   any
	Epic      string
	Updater   int
	Condition string
	Target    string
}

// Trace is the recorded history of one dispatch cycle.
type Trace struct {
	Token  string
	Events []TraceEvent
}

// CanonicalJSON serializes the trace deterministically for golden-file
// comparison and CLI output.
func (t *Trace) CanonicalJSON() ([]byte, error) {
	events := make([]any, len(t.Events))
	for i, e := range t.Events {
		m := map[string]any{
			"seq":  e.Seq,
			"kind": string(e.Kind),
		}
		if e.Action != "" {
			m["action"] = e.Action
			m["external"] = e.External
		}
		if e.Payload != nil {
			m["payload"] = e.Payload
		}
		if e.Epic != "" {
			m["epic"] = e.Epic
			m["updater"] = e.Updater
		}
		if e.Condition != "" {
			m["condition"] = e.Condition
		}
		if e.Target != "" {
			m["target"] = e.Target
		}
		events[i] = m
	}
	return value.MarshalCanonical(map[string]any{
		"token":  t.Token,
		"events": events,
	})
}

func (s *Store) traceAction(a *epic.Action, external bool) {
	if s.trace == nil {
		return
	}
	s.trace.Events = append(s.trace.Events, TraceEvent{
		Seq:      s.clock.Next(),
		Kind:     TraceAction,
		Action:   a.Type,
		External: external,
		Payload:  value.Clone(a.Payload),
	})
}

func (s *Store) traceUpdater(u *updater, trigger *condition, inst *instance) {
	if s.trace == nil {
		return
	}
	ev := TraceEvent{
		Seq:       s.clock.Next(),
		Kind:      TraceUpdater,
		Epic:      u.epicName,
		Updater:   u.index,
		Condition: trigger.typ,
	}
	if inst.id != epic.DefaultTarget {
		ev.Target = inst.id
	}
	s.trace.Events = append(s.trace.Events, ev)
}

func (s *Store) traceOutcome(kind TraceEventKind) {
	if s.trace == nil {
		return
	}
	s.trace.Events = append(s.trace.Events, TraceEvent{
		Seq:  s.clock.Next(),
		Kind: kind,
	})
}
