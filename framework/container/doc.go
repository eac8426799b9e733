// Package container provides the service container at the heart of the Loom
// framework: lifetime-scoped dependency injection with constructor
// autowiring and cycle detection.
//
// # Overview
//
// The container registers implementations for abstract service identities
// (Go types, usually interfaces), resolves object graphs by inspecting
// constructor parameters, and enforces three lifetimes: Singleton (one
// instance per process), Scoped (one instance per unit of work, typically
// one HTTP request) and Transient (a new instance every resolution).
// Resolution tracks the in-progress stack, so cyclic registrations fail
// with the full loop path instead of recursing forever. Concurrent scopes
// are isolated: one scope's instances and resolution stack are never
// observed by another.
//
// # Container lifecycle
//
//  1. Create: c := container.New()
//  2. Register services and providers, apply discovery manifests
//  3. Boot providers — safe to resolve everything after this
//  4. Per unit of work: scope := c.CreateScope(); defer scope.Dispose()
//  5. Shutdown: c.Close() — singleton dispose hooks run here
//
// # Registration
//
//	// Constructor, autowired — identity is the return type
//	c.Register(NewUserService, container.Scoped)
//
//	// Interface identity
//	c.Register(NewSMTPMailer, container.Singleton, container.As((*Mailer)(nil)))
//
//	// Factory — for construction the resolver cannot infer
//	c.RegisterFactory((*Queue)(nil), func(ctx container.Context) (any, error) {
//	    cfg, err := ctx.Get((*config.Config)(nil))
//	    ...
//	}, container.Singleton)
//
//	// Pre-built value
//	c.RegisterInstance(cfg, cfg)
//
// # Resolving
//
//	// Untyped, against the root scope
//	raw, err := c.Get((*Mailer)(nil))
//
//	// Generic (preferred — no type assertion required)
//	mailer, err := container.Resolve[Mailer](c)
//
//	// Per-request
//	scope := c.CreateScope()
//	defer scope.Dispose()
//	svc, err := container.ResolveIn[*UserService](scope)
//
// # Tags
//
//	c.Register(NewCSVExporter, container.Transient, container.WithTags("exporters"))
//	c.Register(NewJSONExporter, container.Transient, container.WithTags("exporters"))
//	all, err := c.GetAllByTag("exporters")
//
// # Dispose hooks
//
// A singleton or scoped instance implementing Disposer is torn down exactly
// once when its owning scope is disposed, in reverse construction order —
// dependents before their dependencies. A request-scoped database session,
// for example, flushes or rolls back in its Dispose regardless of how the
// request terminated.
//
// # Service providers
//
//	type AppProvider struct{ container.BaseProvider }
//
//	func (p *AppProvider) Register(app *container.Container) error {
//	    return app.Register(NewReportService, container.Scoped)
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppProvider{})
//	registry.Boot()
//
// Deferred providers register lazily, on the first resolution of one of the
// identities they declare via Provides().
package container
