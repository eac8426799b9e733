package container

import (
	"reflect"
	"sync"
)

// ServiceDescriptor holds everything the container knows about one
// registered service: the identity it is requested by, how to build it and
// how long the built instance lives. Descriptors are immutable once
// registered — re-registration replaces, never merges.
type ServiceDescriptor struct {
	identity reflect.Type
	lifetime Lifetime
	plan     *constructorPlan // autowired constructor, nil for factories
	factory  Factory          // explicit factory, nil for constructors
	tags     []string
	seq      uint64 // registration order, drives tag lookup ordering
}

// Identity returns the abstract type the descriptor is registered under.
func (d *ServiceDescriptor) Identity() reflect.Type { return d.identity }

// Lifetime returns the declared lifetime.
func (d *ServiceDescriptor) Lifetime() Lifetime { return d.lifetime }

// Tags returns the tag labels the descriptor was registered with.
func (d *ServiceDescriptor) Tags() []string {
	out := make([]string, len(d.tags))
	copy(out, d.tags)
	return out
}

// registry is the descriptor store. It is written during startup
// registration and effectively immutable afterwards; reads during request
// handling take the read lock only.
type registry struct {
	mu    sync.RWMutex
	byID  map[reflect.Type]*ServiceDescriptor
	byTag map[string][]*ServiceDescriptor
	seq   uint64
}

func newRegistry() *registry {
	return &registry{
		byID:  make(map[reflect.Type]*ServiceDescriptor),
		byTag: make(map[string][]*ServiceDescriptor),
	}
}

// add stores a descriptor. Without replace, a second registration for the
// same identity fails with DuplicateRegistrationError.
func (r *registry) add(d *ServiceDescriptor, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[d.identity]; ok {
		if !replace {
			return &DuplicateRegistrationError{Identity: d.identity}
		}
		r.removeTagsLocked(old)
	}

	r.seq++
	d.seq = r.seq
	r.byID[d.identity] = d
	for _, tag := range d.tags {
		r.byTag[tag] = append(r.byTag[tag], d)
	}
	return nil
}

func (r *registry) removeTagsLocked(d *ServiceDescriptor) {
	for _, tag := range d.tags {
		list := r.byTag[tag]
		for i, cand := range list {
			if cand == d {
				r.byTag[tag] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

func (r *registry) lookup(id reflect.Type) (*ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

func (r *registry) has(id reflect.Type) bool {
	_, ok := r.lookup(id)
	return ok
}

// tagged returns all descriptors carrying tag, in registration order.
func (r *registry) tagged(tag string) []*ServiceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byTag[tag]
	out := make([]*ServiceDescriptor, len(list))
	copy(out, list)
	return out
}
