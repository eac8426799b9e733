package container

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// ── Parameter classification ─────────────────────────────────────────────────

// ParameterPolicy decides which parameter types are framework-native and must
// be supplied by the calling layer instead of resolved from the registry.
// The hosting layer (HTTP kernel, CLI) supplies the policy; the container
// itself only treats context.Context as native by default.
type ParameterPolicy interface {
	// Native reports whether t must be caller-supplied.
	Native(t reflect.Type) bool
}

type nativeTypes map[reflect.Type]bool

func (n nativeTypes) Native(t reflect.Type) bool { return n[t] }

// NativeTypes builds a ParameterPolicy from example values. Interface types
// are given as nil pointers, e.g. NativeTypes((*http.ResponseWriter)(nil)).
func NativeTypes(values ...any) ParameterPolicy {
	n := make(nativeTypes, len(values))
	for _, v := range values {
		n[identityOf(v)] = true
	}
	return n
}

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// ParameterBinding classifies one constructor parameter. Every parameter
// falls into exactly one bucket: injectable (resolved through the registry)
// or caller-supplied (bound by the invoking layer).
type ParameterBinding struct {
	Index      int
	Type       reflect.Type
	Injectable bool
	Identity   reflect.Type // service identity, set when Injectable
	Optional   bool         // missing service degrades to an empty Optional
}

// constructorPlan is the cached result of inspecting one constructor:
// the function itself, its classified parameters and its return shape.
type constructorPlan struct {
	fn      reflect.Value
	params  []ParameterBinding
	outType reflect.Type
	hasErr  bool
}

// resolver is the autowire engine: it inspects constructor signatures and
// turns them into plans the container can execute.
type resolver struct {
	policy ParameterPolicy
}

// plan validates ctor and produces its constructor plan. Valid shapes are
// func(deps...) T and func(deps...) (T, error).
func (tr *resolver) plan(ctor any) (*constructorPlan, error) {
	fnValue := reflect.ValueOf(ctor)
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return nil, errors.Errorf("container: constructor must be a function, got %T", ctor)
	}
	fnType := fnValue.Type()

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errType {
			return nil, errors.Errorf("container: constructor %s returns only an error", fnType)
		}
	case 2:
		if fnType.Out(1) != errType {
			return nil, errors.Errorf("container: constructor %s second return value must be error", fnType)
		}
	default:
		return nil, errors.Errorf("container: constructor %s must return (T) or (T, error)", fnType)
	}

	return &constructorPlan{
		fn:      fnValue,
		params:  tr.bindings(fnType),
		outType: fnType.Out(0),
		hasErr:  fnType.NumOut() == 2,
	}, nil
}

// bindings classifies every parameter of fnType, in order.
func (tr *resolver) bindings(fnType reflect.Type) []ParameterBinding {
	params := make([]ParameterBinding, 0, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		params = append(params, tr.classify(i, fnType.In(i)))
	}
	return params
}

func (tr *resolver) classify(index int, t reflect.Type) ParameterBinding {
	if svc, ok := optionalServiceType(t); ok {
		return ParameterBinding{Index: index, Type: t, Injectable: true, Identity: svc, Optional: true}
	}
	if t == ctxType || (tr.policy != nil && tr.policy.Native(t)) || isPrimitive(t) {
		return ParameterBinding{Index: index, Type: t}
	}
	return ParameterBinding{Index: index, Type: t, Injectable: true, Identity: t}
}

// isPrimitive reports types that can never be service identities: route
// parameters, flags and other plain values the calling layer binds itself.
func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// instantiate executes a constructor plan, resolving injectable parameters
// through the resolution context. Caller-supplied parameters are not
// invented: a registered service whose constructor wants one cannot be
// resolved through Get and fails here.
func (tr *resolver) instantiate(identity reflect.Type, plan *constructorPlan, res *resolution) (any, error) {
	args := make([]reflect.Value, len(plan.params))
	for _, p := range plan.params {
		v, err := tr.argument(p, res, nil)
		if err != nil {
			if isContainerError(err) {
				return nil, err
			}
			return nil, &ServiceInstantiationError{Identity: identity, Cause: err}
		}
		args[p.Index] = v
	}
	return callPlan(identity, plan, args)
}

// argument produces the reflect.Value for one parameter binding. supplied
// holds caller-provided values for non-injectable parameters (Invoke path).
func (tr *resolver) argument(p ParameterBinding, res *resolution, supplied []reflect.Value) (reflect.Value, error) {
	switch {
	case p.Optional:
		box := reflect.New(p.Type)
		inst, err := res.get(p.Identity)
		if err == nil {
			box.Interface().(optionalFiller).fill(inst)
			return box.Elem(), nil
		}
		// Only the boxed service itself being unregistered degrades to an
		// empty box. A miss for a transitive dependency of a registered
		// service is a real failure and must surface.
		if nf, ok := err.(*ServiceNotFoundError); ok && nf.Identity == p.Identity {
			return box.Elem(), nil
		}
		return reflect.Value{}, err

	case p.Injectable:
		inst, err := res.get(p.Identity)
		if err != nil {
			return reflect.Value{}, err
		}
		if inst == nil {
			return reflect.Zero(p.Type), nil
		}
		return reflect.ValueOf(inst), nil

	default:
		for _, v := range supplied {
			if v.IsValid() && v.Type().AssignableTo(p.Type) {
				return v, nil
			}
		}
		return reflect.Value{}, errors.Errorf("parameter %d (%s) is caller-supplied and no value was provided", p.Index, p.Type)
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// callPlan invokes the constructor, recovering panics and wrapping any
// failure with the original cause preserved.
func callPlan(identity reflect.Type, plan *constructorPlan, args []reflect.Value) (inst any, err error) {
	out, err := safeCall(plan.fn, args)
	if err != nil {
		return nil, &ServiceInstantiationError{Identity: identity, Cause: err}
	}
	if plan.hasErr && !out[1].IsNil() {
		return nil, &ServiceInstantiationError{Identity: identity, Cause: out[1].Interface().(error)}
	}
	return out[0].Interface(), nil
}

func safeCall(fn reflect.Value, args []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return fn.Call(args), nil
}

// ── Optional dependencies ─────────────────────────────────────────────────────

// Optional boxes a dependency that may be absent from the registry. A
// constructor taking Optional[T] receives an empty box instead of failing
// with ServiceNotFoundError when T is unregistered.
//
//	func NewMetrics(tracer container.Optional[Tracer]) *Metrics {
//	    if t, ok := tracer.Get(); ok { ... }
//	}
type Optional[T any] struct {
	value T
	ok    bool
}

// Get returns the boxed service and whether it was resolved.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// Value returns the boxed service or its zero value.
func (o Optional[T]) Value() T { return o.value }

func (o Optional[T]) optionalService() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (o *Optional[T]) fill(v any) {
	o.value = v.(T)
	o.ok = true
}

type optionalMarker interface{ optionalService() reflect.Type }

type optionalFiller interface{ fill(v any) }

var optionalMarkerType = reflect.TypeOf((*optionalMarker)(nil)).Elem()

// optionalServiceType detects the Optional[T] box and returns T's type.
func optionalServiceType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !t.Implements(optionalMarkerType) {
		return nil, false
	}
	return reflect.Zero(t).Interface().(optionalMarker).optionalService(), true
}

// identityOf normalizes the public "identity any" argument: a reflect.Type
// is used as-is, a nil interface pointer like (*Repository)(nil) names the
// interface itself, anything else names its concrete type.
func identityOf(v any) reflect.Type {
	if t, ok := v.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

// Identity returns the service identity for T — shorthand for registering
// and resolving interface services.
//
//	c.RegisterFactory(container.Identity[Mailer](), newSMTPMailer, container.Singleton)
func Identity[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
