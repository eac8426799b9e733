package container

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jrivets/log4g"
	"github.com/pkg/errors"
)

// ── Container ─────────────────────────────────────────────────────────────────

// Factory builds a service instance by hand, for cases the autowire engine
// cannot infer: configuration-driven services, pooled resources, interface
// registrations. It receives the active resolution context so its own
// dependencies go through Get and stay covered by cycle detection.
type Factory func(ctx Context) (any, error)

// Context is the view of an in-flight resolution handed to factories.
type Context interface {
	// Get resolves identity through the current resolution, preserving
	// the cycle-detection stack and the active scope.
	Get(identity any) (any, error)

	// Scope returns the scope the resolution runs in.
	Scope() *Scope
}

// Container is the service container: it registers implementations for
// abstract service identities, resolves object graphs by inspecting
// constructor dependencies, enforces singleton/scoped/transient lifetimes,
// rejects cyclic graphs and isolates concurrently processed scopes.
//
// A Container is created once at process start, owned explicitly by the
// application kernel and closed at shutdown. There is no ambient global
// instance.
type Container struct {
	registry *registry
	resolver *resolver
	log      log4g.Logger

	mu         sync.RWMutex
	singletons map[reflect.Type]any
	fallback   func(reflect.Type) bool // implicit-registration policy (deferred providers)
	closed     bool

	// buildMu is the singleton construction guard: two scopes racing to
	// first-resolve the same singleton serialize here, so exactly one
	// construction wins. A single lock (re-entered via the resolution
	// context, see resolution.guarded) cannot deadlock on nested
	// singleton construction.
	buildMu sync.Mutex

	scopeSeq uint64
	root     *Scope
}

// Option configures a Container at creation time.
type Option func(*Container)

// WithLogger replaces the container's log4g logger.
func WithLogger(l log4g.Logger) Option {
	return func(c *Container) { c.log = l }
}

// WithParameterPolicy installs the hosting layer's parameter classification
// policy. Types the policy marks native are caller-supplied, never resolved
// from the registry.
func WithParameterPolicy(p ParameterPolicy) Option {
	return func(c *Container) { c.resolver.policy = p }
}

// WithNativeTypes is shorthand for WithParameterPolicy(NativeTypes(values...)).
func WithNativeTypes(values ...any) Option {
	return func(c *Container) { c.resolver.policy = NativeTypes(values...) }
}

// New creates an empty container. The container registers itself, so
// services may declare a *Container dependency — mirroring the framework
// binding the application instance into its own container.
func New(opts ...Option) *Container {
	c := &Container{
		registry:   newRegistry(),
		resolver:   &resolver{},
		singletons: make(map[reflect.Type]any),
		log:        log4g.GetLogger("loom.container"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.root = &Scope{c: c, state: scopeActive, instances: make(map[reflect.Type]any)}
	_ = c.RegisterInstance(c, c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

type registerOptions struct {
	identity reflect.Type
	tags     []string
	replace  bool
}

// RegisterOption adjusts a single registration.
type RegisterOption func(*registerOptions)

// As registers the service under an abstract identity instead of the
// constructor's concrete return type.
//
//	c.Register(NewSMTPMailer, container.Singleton, container.As((*Mailer)(nil)))
func As(identity any) RegisterOption {
	return func(o *registerOptions) { o.identity = identityOf(identity) }
}

// WithTags labels the registration for group lookup via GetByTag /
// GetAllByTag.
func WithTags(tags ...string) RegisterOption {
	return func(o *registerOptions) { o.tags = append(o.tags, tags...) }
}

// Replace allows rebinding an identity that is already registered. The
// previous descriptor and any cached singleton instance are dropped.
func Replace() RegisterOption {
	return func(o *registerOptions) { o.replace = true }
}

// Register binds a constructor under the identity of its return type (or an
// As identity). The constructor's injectable parameters are resolved
// automatically on first Get.
func (c *Container) Register(ctor any, lifetime Lifetime, opts ...RegisterOption) error {
	if !lifetime.valid() {
		return errors.Errorf("container: invalid lifetime %d", lifetime)
	}
	plan, err := c.resolver.plan(ctor)
	if err != nil {
		return err
	}

	o := applyOptions(opts)
	identity := o.identity
	if identity == nil {
		identity = plan.outType
	} else if !plan.outType.AssignableTo(identity) {
		return errors.Errorf("container: %s is not assignable to [%s]", plan.outType, identity)
	}

	return c.addDescriptor(&ServiceDescriptor{
		identity: identity,
		lifetime: lifetime,
		plan:     plan,
		tags:     o.tags,
	}, o.replace)
}

// RegisterFactory binds an explicit factory under identity. The same
// lifetime rules apply as for constructors.
func (c *Container) RegisterFactory(identity any, factory Factory, lifetime Lifetime, opts ...RegisterOption) error {
	if !lifetime.valid() {
		return errors.Errorf("container: invalid lifetime %d", lifetime)
	}
	if factory == nil {
		return errors.New("container: factory must not be nil")
	}
	id := identityOf(identity)
	if id == nil {
		return errors.New("container: identity must not be nil")
	}

	o := applyOptions(opts)
	return c.addDescriptor(&ServiceDescriptor{
		identity: id,
		lifetime: lifetime,
		factory:  factory,
		tags:     o.tags,
	}, o.replace)
}

// RegisterInstance binds a pre-built value as a singleton. If the value has
// a dispose hook it runs at container Close, like any other singleton.
func (c *Container) RegisterInstance(identity any, value any, opts ...RegisterOption) error {
	id := identityOf(identity)
	if id == nil {
		return errors.New("container: identity must not be nil")
	}

	o := applyOptions(opts)
	err := c.addDescriptor(&ServiceDescriptor{
		identity: id,
		lifetime: Singleton,
		factory:  func(Context) (any, error) { return value, nil },
		tags:     o.tags,
	}, o.replace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.singletons[id] = value
	c.mu.Unlock()
	c.root.track(value)
	return nil
}

func (c *Container) addDescriptor(d *ServiceDescriptor, replace bool) error {
	if err := c.registry.add(d, replace); err != nil {
		return err
	}
	if replace {
		// drop a stale singleton so the new registration rebuilds it
		c.mu.Lock()
		delete(c.singletons, d.identity)
		c.mu.Unlock()
	}
	c.log.Debug("registered [", typeName(d.identity), "] as ", d.lifetime)
	return nil
}

func applyOptions(opts []RegisterOption) *registerOptions {
	o := &registerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ── Resolution ────────────────────────────────────────────────────────────────

// resolution is the ephemeral context of one top-level Get call and its
// recursive sub-resolutions: the active scope plus the stack of identities
// currently being constructed, used purely for cycle detection.
type resolution struct {
	c       *Container
	scope   *Scope
	stack   []reflect.Type
	guarded bool // holds the singleton construction guard
}

func (r *resolution) Get(identity any) (any, error) {
	return r.get(identityOf(identity))
}

func (r *resolution) Scope() *Scope { return r.scope }

func (r *resolution) get(id reflect.Type) (any, error) {
	for i, cur := range r.stack {
		if cur == id {
			path := append(append([]reflect.Type{}, r.stack[i:]...), id)
			return nil, &CircularDependencyError{Path: path}
		}
	}

	d, ok := r.c.lookupDescriptor(id)
	if !ok {
		return nil, &ServiceNotFoundError{Identity: id}
	}

	r.stack = append(r.stack, id)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	switch d.lifetime {
	case Singleton:
		return r.c.singleton(r, d)
	case Scoped:
		return r.scope.scoped(r, d)
	default:
		return r.c.construct(r, d)
	}
}

// lookupDescriptor consults the registry and, on a miss, the
// implicit-registration fallback (deferred providers) before giving up.
func (c *Container) lookupDescriptor(id reflect.Type) (*ServiceDescriptor, bool) {
	if d, ok := c.registry.lookup(id); ok {
		return d, true
	}
	c.mu.RLock()
	fb := c.fallback
	c.mu.RUnlock()
	if fb != nil && fb(id) {
		return c.registry.lookup(id)
	}
	return nil, false
}

func (c *Container) setFallback(fb func(reflect.Type) bool) {
	c.mu.Lock()
	c.fallback = fb
	c.mu.Unlock()
}

// singleton returns the cached process-wide instance or constructs it under
// the construction guard. All racing callers observe the same instance.
func (c *Container) singleton(r *resolution, d *ServiceDescriptor) (any, error) {
	c.mu.RLock()
	inst, ok := c.singletons[d.identity]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	if !r.guarded {
		c.buildMu.Lock()
		r.guarded = true
		defer func() {
			r.guarded = false
			c.buildMu.Unlock()
		}()

		// another scope may have won while we waited for the guard
		c.mu.RLock()
		inst, ok = c.singletons[d.identity]
		c.mu.RUnlock()
		if ok {
			return inst, nil
		}
	}

	inst, err := c.construct(r, d)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.singletons[d.identity] = inst
	c.mu.Unlock()
	c.root.track(inst)
	return inst, nil
}

// construct builds a fresh instance from the descriptor's factory or
// constructor plan. Nested resolution failures bubble unmodified; errors
// raised by the constructor or factory itself are wrapped with the cause
// preserved.
func (c *Container) construct(r *resolution, d *ServiceDescriptor) (any, error) {
	if d.factory != nil {
		return c.callFactory(r, d)
	}
	return c.resolver.instantiate(d.identity, d.plan, r)
}

func (c *Container) callFactory(r *resolution, d *ServiceDescriptor) (inst any, err error) {
	defer func() {
		if p := recover(); p != nil {
			inst = nil
			err = &ServiceInstantiationError{Identity: d.identity, Cause: errors.Errorf("panic: %v", p)}
		}
	}()
	inst, err = d.factory(r)
	if err != nil {
		if isContainerError(err) {
			return nil, err
		}
		return nil, &ServiceInstantiationError{Identity: d.identity, Cause: err}
	}
	return inst, nil
}

// ── Public resolution API ─────────────────────────────────────────────────────

// Get resolves identity against the root scope. Request handling should
// resolve through a per-request Scope instead; Get is for process-lifetime
// wiring (boot, CLI commands, background workers).
func (c *Container) Get(identity any) (any, error) {
	return c.root.Get(identity)
}

// Has reports whether identity is registered.
func (c *Container) Has(identity any) bool {
	return c.registry.has(identityOf(identity))
}

// GetByTag resolves the first service registered under tag.
func (c *Container) GetByTag(tag string) (any, error) {
	return c.root.GetByTag(tag)
}

// GetAllByTag resolves every service registered under tag, in registration
// order.
func (c *Container) GetAllByTag(tag string) ([]any, error) {
	return c.root.GetAllByTag(tag)
}

func (c *Container) getByTag(scope *Scope, tag string) (any, error) {
	list := c.registry.tagged(tag)
	if len(list) == 0 {
		return nil, &ServiceNotFoundError{Tag: tag}
	}
	res := &resolution{c: c, scope: scope}
	return res.get(list[0].identity)
}

func (c *Container) getAllByTag(scope *Scope, tag string) ([]any, error) {
	list := c.registry.tagged(tag)
	out := make([]any, 0, len(list))
	for _, d := range list {
		res := &resolution{c: c, scope: scope}
		inst, err := res.get(d.identity)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// CreateScope allocates a new Active scope. Allocation is cheap: no service
// is constructed until first resolved.
func (c *Container) CreateScope() *Scope {
	s := &Scope{
		id:        atomic.AddUint64(&c.scopeSeq, 1),
		c:         c,
		state:     scopeActive,
		instances: make(map[reflect.Type]any),
	}
	c.log.Trace("created scope ", s.id)
	return s
}

// Root returns the process-lifetime scope that owns singleton dispose hooks.
func (c *Container) Root() *Scope { return c.root }

// Close disposes the root scope, running singleton dispose hooks in reverse
// construction order. Further resolution through the container fails with
// ScopeDisposedError. Close is idempotent.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.log.Info("closing container")
	return c.root.Dispose()
}

// Plan classifies every parameter of fn without calling it: the returned
// bindings say which parameters the container would inject and which the
// caller must supply. Routing and CLI layers use it to validate handler
// signatures at registration time instead of failing per request.
func (c *Container) Plan(fn any) ([]ParameterBinding, error) {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil, errors.Errorf("container: Plan target must be a function, got %T", fn)
	}
	return c.resolver.bindings(fnType), nil
}

// ── Invoke ────────────────────────────────────────────────────────────────────

// Invoke calls fn with its injectable parameters resolved from scope and its
// caller-supplied parameters bound from the supplied values (matched by
// assignability). If fn's last return value is an error it is split off and
// returned; the remaining results come back as a slice.
//
// This is how the routing layer dispatches handlers: the in-flight request
// and response writer are supplied, everything else is resolved.
func (c *Container) Invoke(scope *Scope, fn any, supplied ...any) ([]any, error) {
	if scope == nil {
		scope = c.root
	}
	if scope.Disposed() {
		return nil, &ScopeDisposedError{ScopeID: scope.id}
	}

	fnValue := reflect.ValueOf(fn)
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return nil, errors.Errorf("container: Invoke target must be a function, got %T", fn)
	}

	suppliedVals := make([]reflect.Value, 0, len(supplied))
	for _, v := range supplied {
		suppliedVals = append(suppliedVals, reflect.ValueOf(v))
	}

	res := &resolution{c: c, scope: scope}
	bindings := c.resolver.bindings(fnValue.Type())
	args := make([]reflect.Value, len(bindings))
	for _, p := range bindings {
		v, err := c.resolver.argument(p, res, suppliedVals)
		if err != nil {
			return nil, err
		}
		args[p.Index] = v
	}

	out, err := safeCall(fnValue, args)
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, len(out))
	for i, v := range out {
		if i == len(out)-1 && v.Type().Implements(errType) {
			err, _ = v.Interface().(error)
			continue
		}
		results = append(results, v.Interface())
	}
	return results, err
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve resolves T from the container's root scope.
//
//	cfg, err := container.Resolve[*config.Config](c)
func Resolve[T any](c *Container) (T, error) {
	return ResolveIn[T](c.root)
}

// ResolveIn resolves T from the given scope.
func ResolveIn[T any](s *Scope) (T, error) {
	inst, err := s.Get(Identity[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return inst.(T), nil
}

// MustResolve is like Resolve but panics on failure — for wiring paths where
// a missing service is a programming error.
func MustResolve[T any](c *Container) T {
	inst, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return inst
}
