package engine

import (
	"regexp"

	"github.com/google/go-cmp/cmp"

	"github.com/avcs06/ricochet/internal/epic"
	"github.com/avcs06/ricochet/internal/value"
)

// DefaultMaxUndoStack bounds the undo history when WithUndo is used
// without an explicit size.
const DefaultMaxUndoStack = 10

// Option configures a Store at construction time.
type Option func(*Store)

// WithDebug exposes the introspection accessors and trace retrieval.
func WithDebug() Option {
	return func(s *Store) { s.debug = true }
}

// WithPatterns enables wildcard condition and listener routing.
func WithPatterns() Option {
	return func(s *Store) { s.patterns = true }
}

// WithUndo enables undo/redo stacks and patch recording.
func WithUndo() Option {
	return func(s *Store) { s.undoEnabled = true }
}

// WithMaxUndoStack sets the undo history bound. Values below 1 are
// ignored.
func WithMaxUndoStack(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.maxUndoStack = n
		}
	}
}

// WithEqual replaces the deep equality used for change detection and
// selector memoization. The default is cmp.Equal over plain value trees.
func WithEqual(eq func(a, b any) bool) Option {
	return func(s *Store) {
		if eq != nil {
			s.equal = eq
		}
	}
}

// WithTokens replaces the cycle token generator. Tests pass a
// FixedGenerator for deterministic traces.
func WithTokens(gen TokenGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.tokens = gen
		}
	}
}

// Store is the Ricochet engine: the epic registry, the updater and
// listener indices, and the cycle state machine.
//
// All methods must be called from a single goroutine. One cycle is
// active at a time; re-entrant Dispatch from inside a reducer handler
// joins the running cycle.
type Store struct {
	debug        bool
	patterns     bool
	undoEnabled  bool
	maxUndoStack int
	equal        func(a, b any) bool
	tokens       TokenGenerator
	clock        *Clock

	epics map[string]*epicEntry

	// Updater indices: literal action types and wildcard patterns.
	// Pattern iteration follows registration order of the pattern keys.
	updaters            map[string][]*updater
	patternUpdaters     map[string][]*updater
	patternUpdaterOrder []string

	// Listener indices: type -> target -> listeners.
	listeners            map[string]map[string][]*listener
	patternListeners     map[string]map[string][]*listener
	patternListenerOrder []string

	patternRegexps map[string]*regexp.Regexp

	undoStack []undoEntry
	redoStack []undoEntry

	// Per-cycle transient state, reset by finishCycle.
	inCycle        bool
	afterCycle     bool
	sourceAction   epic.Action
	cycleToken     string
	actionCache    map[string]any
	conditionCache []*condition
	epicCache      *touchedSet
	cycleUndo      undoEntry
	trace          *Trace
	lastTrace      *Trace
}

// New creates a Store with the given options.
func New(opts ...Option) *Store {
	s := &Store{
		maxUndoStack:     DefaultMaxUndoStack,
		equal:            func(a, b any) bool { return cmp.Equal(a, b) },
		tokens:           UUIDv7Generator{},
		clock:            NewClock(),
		epics:            make(map[string]*epicEntry),
		updaters:         make(map[string][]*updater),
		patternUpdaters:  make(map[string][]*updater),
		listeners:        make(map[string]map[string][]*listener),
		patternListeners: make(map[string]map[string][]*listener),
		patternRegexps:   make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// epicEntry is the registry record for one epic. Singleton epics hold a
// single instance under epic.DefaultTarget; instanced epics keep the
// frozen registration state/scope as templates for lazily created
// instances.
type epicEntry struct {
	name      string
	instanced bool
	state     any
	scope     any
	instances map[string]*instance
	order     []string
	updaters  []*updater
}

// instance is one state/scope replica. stagedState and stagedScope are
// the cycle-local snapshots ("_state"/"_scope"), lazily initialized on
// first write in a cycle and promoted or discarded at cycle end.
type instance struct {
	id    string
	state any
	scope any

	stagedState    any
	stagedScope    any
	hasStagedState bool
	hasStagedScope bool
}

func (in *instance) clearStaged() {
	in.stagedState = nil
	in.stagedScope = nil
	in.hasStagedState = false
	in.hasStagedScope = false
}

// updater is one compiled (conditions, handler) pair. index is the user
// reducer's registration position within the epic, kept for error
// reporting; disjunction expansion can map several updaters to one
// index.
type updater struct {
	epicName   string
	index      int
	conditions []*condition
	handler    epic.Handler
}

// listener is one compiled listener registration. processed deduplicates
// across one notification pass; active is cleared by the unsubscribe
// thunk.
type listener struct {
	conditions []*condition
	handler    epic.Listener
	processed  bool
	active     bool
}

// touchedSet tracks which epics and instances were written this cycle,
// in first-touch order for deterministic listener iteration.
type touchedSet struct {
	names []string
	ids   map[string][]string
	seen  map[string]map[string]bool
}

func newTouchedSet() *touchedSet {
	return &touchedSet{
		ids:  make(map[string][]string),
		seen: make(map[string]map[string]bool),
	}
}

func (t *touchedSet) add(name, id string) {
	byID := t.seen[name]
	if byID == nil {
		byID = make(map[string]bool)
		t.seen[name] = byID
		t.names = append(t.names, name)
	}
	if !byID[id] {
		byID[id] = true
		t.ids[name] = append(t.ids[name], id)
	}
}

func (t *touchedSet) empty() bool { return len(t.names) == 0 }

// entityPatch carries the inverse transforms for one entity (state or
// scope) of one instance across one cycle.
type entityPatch struct {
	Undo any
	Redo any
}

// instancePatches groups the per-entity patches of one instance.
type instancePatches struct {
	State *entityPatch
	Scope *entityPatch
}

// undoEntry maps epic name -> instance id -> recorded patches for one
// committed cycle.
type undoEntry map[string]map[string]*instancePatches

// deltaKind selects the entity a handler delta applies to.
type deltaKind int

const (
	deltaScope deltaKind = iota
	deltaState
)

// record folds a merge's inverse patches into the entry, composing with
// patches already recorded for the same entity this cycle.
func (e undoEntry) record(name, id string, kind deltaKind, undoPatch, redoPatch any) {
	byID := e[name]
	if byID == nil {
		byID = make(map[string]*instancePatches)
		e[name] = byID
	}
	ip := byID[id]
	if ip == nil {
		ip = &instancePatches{}
		byID[id] = ip
	}
	var p **entityPatch
	if kind == deltaState {
		p = &ip.State
	} else {
		p = &ip.Scope
	}
	if *p == nil {
		*p = &entityPatch{Undo: undoPatch, Redo: redoPatch}
		return
	}
	(*p).Undo = value.ComposeUndo((*p).Undo, undoPatch)
	(*p).Redo = value.ComposeRedo((*p).Redo, redoPatch)
}
