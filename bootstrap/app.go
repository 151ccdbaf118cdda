package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/ioc/aop"
	"github.com/kbukum/ioc/component"
	"github.com/kbukum/ioc/config"
	"github.com/kbukum/ioc/di"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/observability"
	"github.com/kbukum/ioc/registry"
	"github.com/kbukum/ioc/util"
	"github.com/kbukum/ioc/version"
)

// App wires a container application from its configuration: logger,
// telemetry, instance registry, auto-proxy creator and container, all
// started and stopped as components.
//
// Example:
//
//	cfg, err := config.Load("orders")
//	app, err := bootstrap.NewApp(cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App) error {
//	    return a.Register(di.Define("repo", newRepo, nil))
//	})
//	app.Run(context.Background())
type App struct {
	Name       string
	Version    string
	Cfg        *config.Config
	Registry   *registry.Registry
	Container  *di.Container
	Proxies    *aop.AutoProxyCreator
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application from cfg.
// It applies defaults, validates the config, and initializes the logger.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Name:            cfg.Name,
		Version:         version.Resolve(cfg.Version),
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	app.Components = component.NewRegistry(component.WithLogger(app.Logger.WithComponent("component")))

	registryID := uuid.NewString()
	regOpts := []registry.Option{
		registry.WithID(registryID),
		registry.WithLogger(app.Logger.WithComponent("registry")),
	}
	telemetry, err := app.telemetry(registryID)
	if err != nil {
		return nil, err
	}
	regOpts = append(regOpts, telemetry...)
	app.Registry = registry.New(append(regOpts, o.registryOpts...)...)

	app.Container = di.New(
		di.WithName(cfg.Name),
		di.WithRegistry(app.Registry),
		di.WithLogger(app.Logger.WithComponent("di")),
		di.WithSettings(cfg.Registry),
	)

	if cfg.Proxy.Enabled {
		creatorOpts := []aop.CreatorOption{
			aop.WithLogger(app.Logger.WithComponent("aop")),
			aop.WithAdvisorSource(aop.BeanAdvisors(app.Container)),
			aop.WithApplyCommonInterceptorsFirst(cfg.Proxy.ApplyCommonInterceptorsFirst),
			aop.WithInterceptorNames(app.Container, cfg.Proxy.CommonInterceptors...),
		}
		app.Proxies = aop.NewAutoProxyCreator(append(creatorOpts, o.creatorOpts...)...)
		if err := app.Container.AddPostProcessor(app.Proxies); err != nil {
			return nil, err
		}
	}

	if err := app.Components.Register(app.Container); err != nil {
		return nil, err
	}

	app.Summary = NewSummary(cfg.Name, app.Version)
	return app, nil
}

// telemetry registers the enabled telemetry providers as components and
// returns the registry options that observe constructions.
func (a *App) telemetry(registryID string) ([]registry.Option, error) {
	tel := a.Cfg.Telemetry
	if !tel.Tracing.Enabled && !tel.Metrics.Enabled {
		return nil, nil
	}

	observerOpts := []observability.ObserverOption{
		observability.WithObserverLogger(a.Logger.WithComponent("observability")),
		observability.WithRegistryID(registryID),
	}
	if tel.Tracing.Enabled {
		if err := a.Components.Register(observability.NewTracerComponent(observability.TracerConfigFrom(a.Cfg))); err != nil {
			return nil, err
		}
	}
	if tel.Metrics.Enabled {
		if err := a.Components.Register(observability.NewMeterComponent(observability.MeterConfigFrom(a.Cfg))); err != nil {
			return nil, err
		}
		metrics, err := observability.NewMetrics(observability.Meter(a.Name))
		if err != nil {
			return nil, err
		}
		observerOpts = append(observerOpts, observability.WithMetrics(metrics))
	}

	observer := observability.NewCreationObserver(observerOpts...)
	return []registry.Option{registry.WithCreationListener(observer)}, nil
}

// Register adds an instance definition to the container.
func (a *App) Register(def di.Definition) error {
	return a.Container.Register(def)
}

// RegisterComponent adds a component to the application's registry.
func (a *App) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback to run during the configure phase.
// Use this to register definitions and post-processors before the
// container pre-instantiates its instances.
func (a *App) OnConfigure(fn func(ctx context.Context, app *App) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// Health aggregates the health of every registered component.
func (a *App) Health(ctx context.Context) *observability.ServiceHealth {
	return observability.CheckService(ctx, a.Name, a.Version, a.Components)
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	failing := util.Filter(a.Health(ctx).Components, func(h component.Health) bool {
		return h.Status != component.StatusHealthy
	})
	if len(failing) == 0 {
		return nil
	}
	unhealthy := make([]string, 0, len(failing))
	for _, h := range failing {
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	return fmt.Errorf("unhealthy components: %v", unhealthy)
}

// Run executes the full application lifecycle for long-running services:
// Configure → Start components → OnStart hooks → ReadyCheck → OnReady hooks →
// Block on signal → OnStop hooks → Graceful Shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the full bootstrap lifecycle.
// Unlike Run, it does not block on shutdown signals: it runs the task
// and shuts down when the task completes or the context is canceled.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup performs the common initialization sequence shared by Run and RunTask.
func (a *App) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	// Phase 1: Configure. Definitions must exist before the container starts.
	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Phase 2: Start components; the container pre-instantiates here.
	if err := a.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()
	return nil
}

// configure runs registered configuration callbacks (Phase 1).
func (a *App) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Info("Phase 1: Running configuration callbacks", logger.Fields(logger.FieldCount, len(a.onConfigure)))

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}

	a.Logger.Info("Phase 1: Configuration complete")
	return nil
}

// initialize starts all registered components (Phase 2).
func (a *App) initialize(ctx context.Context) error {
	a.Logger.Info("Phase 2: Starting components")

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}

	a.Logger.Info("Phase 2: All components started")
	return nil
}

// DisplaySummary prints the startup summary to stdout.
func (a *App) DisplaySummary() {
	a.Summary.Render(os.Stdout, a.Components, a.Container, a.Proxies)
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App) Shutdown(_ context.Context) error {
	return a.stop()
}

// stop runs the OnStop hooks and stops all components within the graceful
// timeout. Stopping the container destroys every managed instance.
func (a *App) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}

	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}

	a.Logger.Info("Application shutdown complete")
	return stderrors.Join(errs...)
}
