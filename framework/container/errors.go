package container

import (
	"fmt"
	"reflect"
	"strings"
)

// The container signals every failure across its boundary with one of five
// error types. They all bubble unmodified to whoever initiated the top-level
// resolution — the container never produces a partial result on failure.

// DuplicateRegistrationError reports a second registration for an identity
// that is already bound, without the Replace option.
type DuplicateRegistrationError struct {
	Identity reflect.Type
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("container: [%s] is already registered (use Replace to rebind)", typeName(e.Identity))
}

// ServiceNotFoundError reports a resolution request for an identity (or tag)
// that has no descriptor and no implicit-registration fallback.
type ServiceNotFoundError struct {
	Identity reflect.Type
	Tag      string
}

func (e *ServiceNotFoundError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("container: no service registered under tag %q", e.Tag)
	}
	return fmt.Sprintf("container: no service registered for [%s]", typeName(e.Identity))
}

// CircularDependencyError reports a dependency cycle found during resolution.
// Path holds the ordered identities forming the loop, first element repeated
// last, e.g. [A B A].
type CircularDependencyError struct {
	Path []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	names := make([]string, 0, len(e.Path))
	for _, t := range e.Path {
		names = append(names, typeName(t))
	}
	return fmt.Sprintf("container: circular dependency: %s", strings.Join(names, " -> "))
}

// ServiceInstantiationError wraps a failure raised by a constructor or
// factory. The original error is preserved as Cause and reachable through
// errors.Unwrap / errors.Is.
type ServiceInstantiationError struct {
	Identity reflect.Type
	Cause    error
}

func (e *ServiceInstantiationError) Error() string {
	return fmt.Sprintf("container: constructing [%s]: %v", typeName(e.Identity), e.Cause)
}

func (e *ServiceInstantiationError) Unwrap() error { return e.Cause }

// ScopeDisposedError reports a resolution against a scope whose lifetime has
// already ended. It is a programmer error: fatal to the current operation,
// not to the process.
type ScopeDisposedError struct {
	ScopeID uint64
}

func (e *ScopeDisposedError) Error() string {
	return fmt.Sprintf("container: scope %d is disposed", e.ScopeID)
}

// isContainerError tells whether err is one of the five contract errors, so
// that factory failures which are really nested resolution failures pass
// through unwrapped.
func isContainerError(err error) bool {
	switch err.(type) {
	case *DuplicateRegistrationError, *ServiceNotFoundError,
		*CircularDependencyError, *ServiceInstantiationError, *ScopeDisposedError:
		return true
	}
	return false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
