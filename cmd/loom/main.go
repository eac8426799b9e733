package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jrivets/log4g"
	cli "gopkg.in/urfave/cli.v2"

	"github.com/loomkit/loom/framework/app"
	"github.com/loomkit/loom/framework/container"
	loomhttp "github.com/loomkit/loom/framework/http"
	"github.com/loomkit/loom/framework/routing"
)

const Version = "0.1.0"

const (
	argEnvFile = "env-file"
	argCfgFile = "config-file"
	argPort    = "port"
)

var log = log4g.GetLogger("loom")

func main() {
	defer log4g.Shutdown()

	a := &cli.App{
		Name:    "loom",
		Version: Version,
		Usage:   "HTTP application kernel with a service container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  argEnvFile,
				Usage: "The .env file to seed environment variables from",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  argCfgFile,
				Usage: "The JSON configuration file name",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: runServer,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  argPort,
						Usage: "Overrides the listen port (APP_PORT)",
					},
				},
			},
		},
	}

	sort.Sort(cli.FlagsByName(a.Flags))
	sort.Sort(cli.CommandsByName(a.Commands))

	a.Run(os.Args)
}

func runServer(c *cli.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		s := <-sigChan
		log.Info("Got signal \"", s, "\", cancelling context ")
		cancel()
	}()

	if port := c.String(argPort); port != "" {
		os.Setenv("APP_PORT", port)
	}

	a := app.New(
		app.WithEnvFiles(c.String(argEnvFile)),
		app.WithConfigFile(c.String(argCfgFile)),
	)
	if err := a.Apply(services()); err != nil {
		log.Error("service registration failed: ", err)
		return err
	}
	if err := a.Boot(); err != nil {
		log.Error("boot failed: ", err)
		return err
	}

	router, err := a.Router()
	if err != nil {
		return err
	}
	registerRoutes(router)

	return a.Run(ctx)
}

// ── demo services ────────────────────────────────────────────────────────────

// visitLog collects events for one request and flushes them when the
// request scope is disposed.
type visitLog struct {
	events []string
}

func newVisitLog() *visitLog { return &visitLog{} }

func (v *visitLog) Note(event string) {
	v.events = append(v.events, event)
}

func (v *visitLog) Dispose() error {
	if len(v.events) > 0 {
		log.Debug("request events: ", v.events)
	}
	return nil
}

type greeter struct {
	visits *visitLog
}

func newGreeter(visits *visitLog) *greeter {
	return &greeter{visits: visits}
}

func (g *greeter) Greet(name string) string {
	g.visits.Note("greeted " + name)
	if name == "" {
		name = "stranger"
	}
	return "Hello, " + name + "!"
}

func services() container.Manifest {
	return container.Manifest{
		DefaultLifetime: container.Scoped,
		Entries: []container.ManifestEntry{
			{Constructor: newVisitLog},
			{Constructor: newGreeter},
		},
	}
}

func registerRoutes(router *routing.Router) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		loomhttp.NewResponse(w).Success(map[string]any{"status": "ok"})
	})

	router.Handle(http.MethodGet, "/greet/{name}", func(w http.ResponseWriter, r *http.Request, g *greeter) error {
		name := routing.Param(r, "name")
		loomhttp.NewResponse(w).Success(map[string]any{"message": g.Greet(name)})
		return nil
	})
}
