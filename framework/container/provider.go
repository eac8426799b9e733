package container

import (
	"reflect"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations and their boot logic.
//
// Every provider must implement at minimum Register(). Boot() is called
// after ALL providers have been registered, making it safe to resolve other
// services inside Boot().
//
//	type StorageProvider struct{ container.BaseProvider }
//
//	func (p *StorageProvider) Register(app *container.Container) error {
//	    return app.RegisterFactory((*BlobStore)(nil), newDiskStore, container.Singleton)
//	}
//
//	func (p *StorageProvider) Boot(app *container.Container) error {
//	    store, err := container.Resolve[BlobStore](app)
//	    ...
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other services here — use Boot() for that.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	// Safe to resolve and use any registration here.
	Boot(app *Container) error

	// Provides returns the identities this provider registers, used for
	// deferred (lazy) provider loading. Identities are given the same
	// way as to Get: a value, a reflect.Type, or a nil interface
	// pointer. Return nil if the provider is always eager.
	Provides() []any

	// IsDeferred returns true if this provider should be loaded lazily,
	// on the first resolution of one of its Provides() identities.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op implementations of
// Boot(), Provides() and IsDeferred(). Embed it and override what you need.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []any         { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders.
// Deferred providers act as the container's implicit-registration policy: a
// resolution miss for one of their identities loads the provider and
// retries the lookup.
type ProviderRegistry struct {
	app *Container

	mu         sync.Mutex
	eager      []ServiceProvider
	deferred   map[reflect.Type]ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app and installs its
// deferred-provider fallback on the container.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		app:        app,
		deferred:   make(map[reflect.Type]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
	}
	app.setFallback(r.loadDeferred)
	return r
}

// Register adds a provider and calls its Register() method, unless the
// provider is deferred — then registration waits for the first resolution
// of one of its identities.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, identity := range provider.Provides() {
			r.deferred[identityOf(identity)] = provider
		}
		r.mu.Unlock()
		return nil
	}

	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.app); err != nil {
		return err
	}
	// late registration on an already-booted application boots immediately
	if booted {
		return provider.Boot(r.app)
	}
	return nil
}

// loadDeferred is the container's implicit-registration policy. It reports
// whether a deferred provider was loaded for identity, so the container can
// retry its descriptor lookup.
func (r *ProviderRegistry) loadDeferred(identity reflect.Type) bool {
	r.mu.Lock()
	provider, ok := r.deferred[identity]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for _, id := range provider.Provides() {
		delete(r.deferred, identityOf(id))
	}
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.app); err != nil {
		r.app.log.Error("deferred provider registration failed: ", err)
		return false
	}
	if booted {
		if err := provider.Boot(r.app); err != nil {
			r.app.log.Error("deferred provider boot failed: ", err)
		}
	}
	return true
}

// Boot calls Boot() on all eager providers. Must be called after ALL
// providers have been registered; repeat calls are no-ops.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := make([]ServiceProvider, len(r.eager))
	copy(providers, r.eager)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.app); err != nil {
			return err
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServiceProvider, len(r.eager))
	copy(out, r.eager)
	return out
}
