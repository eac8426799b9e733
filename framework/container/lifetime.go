package container

// Lifetime governs how long a resolved instance is reused.
type Lifetime int

const (
	// lifetimeUnspecified is the zero value; a manifest entry with an
	// unspecified lifetime inherits the manifest default.
	lifetimeUnspecified Lifetime = iota

	// Singleton — one instance for the whole process, shared by every scope.
	Singleton

	// Scoped — one instance per Scope (unit of work); different scopes
	// never see each other's instances.
	Scoped

	// Transient — a new instance on every resolution; the container keeps
	// no reference to it.
	Transient
)

// String returns the lifetime name.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return "unspecified"
}

func (l Lifetime) valid() bool {
	return l == Singleton || l == Scoped || l == Transient
}
