package providers

import (
	"strings"

	"github.com/jrivets/log4g"
	"github.com/pkg/errors"

	"github.com/loomkit/loom/framework/config"
	"github.com/loomkit/loom/framework/container"
	"github.com/loomkit/loom/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration and binds
// *config.Config into the container as a singleton. Environment values can
// be seeded from .env files; a JSON config file, when given, overrides the
// environment-derived values.
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles   []string
	ConfigFile string
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	envFiles := p.EnvFiles
	file := p.ConfigFile
	return app.RegisterFactory(container.Identity[*config.Config](),
		func(ctx container.Context) (any, error) {
			cfg := config.Load(envFiles...)
			over, err := config.LoadFile(file)
			if err != nil {
				return nil, err
			}
			cfg.Apply(over)
			return cfg, nil
		}, container.Singleton)
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider configures log4g from the application config. With
// Log.ConfigFile set it loads the properties file; otherwise it applies
// Log.Level to the root logger.
type LoggingServiceProvider struct {
	container.BaseProvider
}

func (p *LoggingServiceProvider) Register(_ *container.Container) error { return nil }

func (p *LoggingServiceProvider) Boot(app *container.Container) error {
	cfg, err := container.Resolve[*config.Config](app)
	if err != nil {
		return err
	}
	if cfg.Log.ConfigFile != "" {
		if err := log4g.ConfigF(cfg.Log.ConfigFile); err != nil {
			return errors.Wrapf(err, "could not apply log config file %s", cfg.Log.ConfigFile)
		}
		return nil
	}
	log4g.SetLogLevel("", levelByName(cfg.Log.Level))
	return nil
}

func levelByName(name string) log4g.Level {
	switch strings.ToUpper(name) {
	case "FATAL":
		return log4g.FATAL
	case "ERROR":
		return log4g.ERROR
	case "WARN":
		return log4g.WARN
	case "DEBUG":
		return log4g.DEBUG
	case "TRACE":
		return log4g.TRACE
	default:
		return log4g.INFO
	}
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider binds the HTTP router as a singleton. The router
// dispatches handler functions through the container, so handlers receive
// their dependencies resolved from the per-request scope.
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	return app.RegisterFactory(container.Identity[*routing.Router](),
		func(ctx container.Context) (any, error) {
			return routing.New(app), nil
		}, container.Singleton)
}
