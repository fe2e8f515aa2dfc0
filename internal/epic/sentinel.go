package epic

// sentinel is a private pointer type so that sentinel values compare by
// identity only and can never equal a user-supplied value.
type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

// Initial is the value of state, scope and condition values that have
// never been written. Distinct from nil: a handler that stores nil has
// written, an Initial value has not.
var Initial any = &sentinel{name: "<initial>"}

// DefaultTarget is the instance key used for singleton epics and for
// listeners unscoped to a specific instance. The NUL prefix keeps it out
// of the legal user id space.
const DefaultTarget = "\x00default"

// IsInitial reports whether v is the Initial sentinel.
func IsInitial(v any) bool { return v == Initial }
