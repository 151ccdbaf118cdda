// Package bootstrap wires a container application from its configuration.
//
// NewApp initializes the logger, registers the enabled telemetry providers
// as components, creates the instance registry with a construction observer,
// installs the auto-proxy creator and adds the container as a component.
//
// # Quick Start
//
//	cfg, err := config.Load("orders")
//	app, err := bootstrap.NewApp(cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App) error {
//	    return a.Register(di.Define("repo", newRepo, nil))
//	})
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Startup runs the configure callbacks, starts components in registration
// order (the container pre-instantiates its eager instances), and runs the
// OnStart and OnReady hooks. Shutdown runs OnStop hooks, then stops
// components in reverse order, destroying every managed instance.
package bootstrap
