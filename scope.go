package weave

// Scope controls how long a resolved binding value is reused.
type Scope int

const (
	// Transient creates a new value for every resolution.
	Transient Scope = iota

	// Singleton computes the value once and caches it on the binding, shared by
	// every context that resolves it.
	Singleton

	// ContextScoped computes the value once per requesting context, even when the
	// binding itself lives in an ancestor.
	ContextScoped
)

func (s Scope) String() string {
	switch s {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	case ContextScoped:
		return "context"
	default:
		return "unknown"
	}
}

// IsValid reports whether s is one of the supported scopes.
func (s Scope) IsValid() bool {
	return s >= Transient && s <= ContextScoped
}

// caches reports whether values in this scope are cached after the first resolution.
func (s Scope) caches() bool {
	return s == Singleton || s == ContextScoped
}
