package container

import (
	"reflect"
	"sync"
)

// Disposer is the teardown hook contract. A singleton or scoped instance
// implementing it has Dispose called exactly once when its owning scope is
// disposed. Transient instances are never tracked — the container keeps no
// reference to them.
type Disposer interface {
	Dispose() error
}

type scopeState int32

// Scope state machine: Created -> Active -> Disposing -> Disposed.
// A scope becomes Active immediately on allocation and stays so for its
// working lifetime; Disposed is terminal.
const (
	scopeCreated scopeState = iota
	scopeActive
	scopeDisposing
	scopeDisposed
)

// Scope is an isolated resolution context bound to one unit of work
// (typically one in-flight request). It owns the scoped-lifetime instances
// resolved through it; another scope never observes them.
type Scope struct {
	id uint64
	c  *Container

	mu        sync.Mutex
	state     scopeState
	instances map[reflect.Type]any
	hooks     []func() error // dispose hooks, construction order
}

// ID returns the scope's unique identifier. The root scope has ID 0.
func (s *Scope) ID() uint64 { return s.id }

// Disposed reports whether the scope's lifetime has ended.
func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state >= scopeDisposing
}

// Get resolves identity against this scope.
func (s *Scope) Get(identity any) (any, error) {
	if s.Disposed() {
		return nil, &ScopeDisposedError{ScopeID: s.id}
	}
	res := &resolution{c: s.c, scope: s}
	return res.get(identityOf(identity))
}

// Has reports whether identity is registered.
func (s *Scope) Has(identity any) bool { return s.c.Has(identity) }

// GetByTag resolves the first service registered under tag, in registration
// order.
func (s *Scope) GetByTag(tag string) (any, error) {
	if s.Disposed() {
		return nil, &ScopeDisposedError{ScopeID: s.id}
	}
	return s.c.getByTag(s, tag)
}

// GetAllByTag resolves every service registered under tag, in registration
// order. Each instance is lifetime-managed independently, exactly as Get
// would.
func (s *Scope) GetAllByTag(tag string) ([]any, error) {
	if s.Disposed() {
		return nil, &ScopeDisposedError{ScopeID: s.id}
	}
	return s.c.getAllByTag(s, tag)
}

// OnDispose registers fn to run when the scope is disposed. Hooks run in
// reverse registration order, after later-constructed instances and before
// earlier ones.
func (s *Scope) OnDispose(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= scopeDisposing {
		return &ScopeDisposedError{ScopeID: s.id}
	}
	s.hooks = append(s.hooks, fn)
	return nil
}

// Dispose ends the scope's lifetime: every dispose hook runs exactly once,
// in reverse construction order, so dependents are torn down before their
// dependencies. Disposing an already-disposed scope is a no-op, which keeps
// cleanup-on-error paths simple. The first hook failure is returned; the
// rest are logged and still executed.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.state >= scopeDisposing {
		s.mu.Unlock()
		return nil
	}
	s.state = scopeDisposing
	hooks := s.hooks
	s.hooks = nil
	s.instances = nil
	s.mu.Unlock()

	var first error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](); err != nil {
			s.c.log.Error("dispose hook failed in scope ", s.id, ": ", err)
			if first == nil {
				first = err
			}
		}
	}

	s.mu.Lock()
	s.state = scopeDisposed
	s.mu.Unlock()
	s.c.log.Trace("disposed scope ", s.id)
	return first
}

// scoped returns the cached scoped instance or constructs and caches it in
// this scope only. The cache is owned exclusively by the scope, so no
// cross-scope synchronization is involved.
func (s *Scope) scoped(res *resolution, d *ServiceDescriptor) (any, error) {
	s.mu.Lock()
	if s.state >= scopeDisposing {
		s.mu.Unlock()
		return nil, &ScopeDisposedError{ScopeID: s.id}
	}
	if inst, ok := s.instances[d.identity]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	inst, err := s.c.construct(res, d)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state >= scopeDisposing {
		s.mu.Unlock()
		s.disposeOrphan(inst)
		return nil, &ScopeDisposedError{ScopeID: s.id}
	}
	if existing, ok := s.instances[d.identity]; ok {
		s.mu.Unlock()
		s.disposeOrphan(inst)
		return existing, nil
	}
	s.instances[d.identity] = inst
	s.trackLocked(inst)
	s.mu.Unlock()
	return inst, nil
}

// disposeOrphan tears down an instance that was constructed but never
// cached: the scope was disposed mid-construction, or a concurrent
// resolution won the cache race. The instance would otherwise leak with
// its Dispose never called.
func (s *Scope) disposeOrphan(inst any) {
	d, ok := inst.(Disposer)
	if !ok {
		return
	}
	if err := d.Dispose(); err != nil {
		s.c.log.Warn("disposing uncached instance in scope ", s.id, ": ", err)
	}
}

// track records inst's dispose hook, if it has one.
func (s *Scope) track(inst any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= scopeDisposing {
		return
	}
	s.trackLocked(inst)
}

func (s *Scope) trackLocked(inst any) {
	if d, ok := inst.(Disposer); ok {
		s.hooks = append(s.hooks, d.Dispose)
	}
}
