package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrivets/log4g"
	"github.com/pkg/errors"

	"github.com/loomkit/loom/framework/config"
	"github.com/loomkit/loom/framework/container"
	"github.com/loomkit/loom/framework/providers"
	"github.com/loomkit/loom/framework/routing"
)

// Application is the top-level application object. It embeds the service
// container and owns the provider registry, so bootstrap code can register
// services and providers through a single handle.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	logger log4g.Logger

	mu     sync.Mutex
	server *http.Server
	regErr error // first provider registration failure, surfaced at Boot
}

// Options configure the Application.
type Option func(*options)

type options struct {
	envFiles   []string
	configFile string
	containerO []container.Option
}

// WithEnvFiles sets the .env files read at configuration load time.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithConfigFile sets a JSON config file that overrides environment values.
func WithConfigFile(file string) Option {
	return func(o *options) { o.configFile = file }
}

// WithContainerOptions passes options through to the service container.
func WithContainerOptions(copts ...container.Option) Option {
	return func(o *options) { o.containerO = append(o.containerO, copts...) }
}

// New creates the application and registers the framework core providers.
// Handler parameters backed by the request itself are caller-supplied, so
// the container never tries to construct them.
func New(opts ...Option) *Application {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	copts := append([]container.Option{
		container.WithNativeTypes((*http.ResponseWriter)(nil), (*http.Request)(nil)),
	}, o.containerO...)

	c := container.New(copts...)
	registry := container.NewProviderRegistry(c)

	app := &Application{
		Container: c,
		Providers: registry,
		logger:    log4g.GetLogger("loom.app"),
	}

	app.Register(&providers.ConfigServiceProvider{
		EnvFiles:   o.envFiles,
		ConfigFile: o.configFile,
	})
	app.Register(&providers.LoggingServiceProvider{})
	app.Register(&providers.RoutingServiceProvider{})

	return app
}

// Register adds a ServiceProvider to the application. A failure is returned
// and also remembered, so a caller that drops the error still sees it when
// Boot runs.
func (a *Application) Register(provider container.ServiceProvider) error {
	err := a.Providers.Register(provider)
	if err != nil {
		a.mu.Lock()
		if a.regErr == nil {
			a.regErr = err
		}
		a.mu.Unlock()
	}
	return err
}

// Boot runs the Boot() phase on all eager providers. A registration failure
// recorded earlier fails the boot before any provider boots.
func (a *Application) Boot() error {
	a.mu.Lock()
	regErr := a.regErr
	a.mu.Unlock()
	if regErr != nil {
		return errors.WithMessage(regErr, "provider registration failed")
	}
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() (*config.Config, error) {
	return container.Resolve[*config.Config](a.Container)
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container)
}

// Run boots the application (if needed) and serves HTTP until ctx is
// cancelled or the listener fails. On cancellation the server drains
// in-flight requests and the container is closed, disposing singletons.
func (a *Application) Run(ctx context.Context) error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return errors.WithMessage(err, "boot failed")
		}
	}
	cfg, err := a.Config()
	if err != nil {
		return err
	}
	router, err := a.Router()
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	srv := &http.Server{Addr: addr, Handler: router}

	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	a.logger.Info(cfg.App.Name, " listening on ", addr, " [", cfg.App.Env, "]")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			_ = a.Container.Close()
			return errors.Wrap(err, "server error")
		}
		return a.Container.Close()
	}
}

// Shutdown drains the HTTP server (when running) and closes the container,
// running dispose hooks for every singleton in reverse construction order.
// Safe to call more than once.
func (a *Application) Shutdown() error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.logger.Warn("server shutdown: ", err)
		}
	}
	return a.Container.Close()
}

// Environment helpers.
func (a *Application) Environment() string {
	cfg, err := a.Config()
	if err != nil {
		return ""
	}
	return cfg.App.Env
}
func (a *Application) IsLocal() bool      { return a.Environment() == "local" }
func (a *Application) IsProduction() bool { return a.Environment() == "production" }
func (a *Application) IsTesting() bool    { return a.Environment() == "testing" }
