package di

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kbukum/ioc/component"
	"github.com/kbukum/ioc/config"
	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/registry"
	"github.com/kbukum/ioc/util"
	"github.com/kbukum/ioc/validation"
)

// Container creates managed instances from definitions and caches them in a
// registry. Instances caught in a circular reference are exposed early, so
// collaborators can hold them before they are fully populated.
type Container struct {
	name string
	log  *logger.Logger
	reg  *registry.Registry

	allowCircular  bool
	allowRaw       bool
	preInstantiate bool

	mu         sync.RWMutex
	defs       map[string]*Definition
	order      []string
	processors []any

	started atomic.Bool
}

// Option configures a Container.
type Option func(*Container)

// WithName sets the component name of the container.
func WithName(name string) Option {
	return func(c *Container) { c.name = name }
}

// WithRegistry uses r to cache instances.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Container) { c.reg = r }
}

// WithLogger sets the container logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) { c.log = l }
}

// WithAllowCircularReferences enables or disables early exposure. It is
// enabled by default.
func WithAllowCircularReferences(allow bool) Option {
	return func(c *Container) { c.allowCircular = allow }
}

// WithAllowRawInjectionDespiteWrapping tolerates collaborators holding an
// early reference that initialization later replaced.
func WithAllowRawInjectionDespiteWrapping(allow bool) Option {
	return func(c *Container) { c.allowRaw = allow }
}

// WithSettings applies the registry section of the configuration.
func WithSettings(cfg config.RegistryConfig) Option {
	return func(c *Container) {
		c.allowCircular = cfg.AllowCircularReferences
		c.allowRaw = cfg.AllowRawInjectionDespiteWrapping
		c.preInstantiate = cfg.PreInstantiate
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		name:           "container",
		allowCircular:  true,
		preInstantiate: true,
		defs:           make(map[string]*Definition),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get("di")
	}
	if c.reg == nil {
		c.reg = registry.New()
	}
	return c
}

// Registry returns the registry caching the container's instances.
func (c *Container) Registry() *registry.Registry { return c.reg }

// Register adds a definition. Names must be unique.
func (c *Container) Register(def Definition) error {
	if err := validation.Validate(def); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.defs[def.Name]; exists {
		return errors.InvalidInput("name", fmt.Sprintf("definition '%s' already registered", def.Name)).
			WithDetail("instance", def.Name)
	}
	d := def
	d.DependsOn = slices.Clone(def.DependsOn)
	c.defs[d.Name] = &d
	c.order = append(c.order, d.Name)

	c.log.Debug("definition registered", logger.Fields(
		logger.FieldInstance, d.Name,
		"role", d.Role.String(),
		"lazy", d.Lazy,
	))
	return nil
}

// RegisterSingleton binds an already constructed instance to name.
func (c *Container) RegisterSingleton(ctx context.Context, name string, instance any) error {
	return c.reg.RegisterSingleton(ctx, name, instance)
}

// AddPostProcessor registers p. It must implement at least one of the
// processor interfaces of this package. Processors are kept in three tiers:
// PriorityOrdered, then Ordered, then the rest in registration order.
func (c *Container) AddPostProcessor(p any) error {
	if p == nil || !isProcessor(p) {
		return errors.InvalidInput("processor", fmt.Sprintf("%s implements no post-processor interface", util.TypeName(p)))
	}
	c.mu.Lock()
	c.processors = sortProcessors(append(c.processors, p))
	count := len(c.processors)
	c.mu.Unlock()

	c.log.Debug("post-processor added", logger.Fields(
		"processor", util.TypeName(p),
		logger.FieldCount, count,
	))
	return nil
}

// Definition returns the definition of name.
func (c *Container) Definition(name string) (Definition, bool) {
	d, ok := c.definition(name)
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

// DefinitionNames returns the definition names in registration order.
func (c *Container) DefinitionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

func (c *Container) definition(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[name]
	return d, ok
}

func (c *Container) processorsFor(def *Definition) []any {
	if def.Role == RoleInfrastructure {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.processors)
}

// GetBean returns the instance called name, creating it and the instances
// it depends on if needed.
func (c *Container) GetBean(ctx context.Context, name string) (any, error) {
	v, ok, err := c.reg.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}

	def, ok := c.definition(name)
	if !ok {
		return nil, errors.NotFound("instance", name)
	}

	for _, dep := range def.DependsOn {
		if c.reg.IsDependent(name, dep) {
			return nil, errors.New(errors.ErrCodeCurrentlyInCreation,
				fmt.Sprintf("circular depends-on relationship between '%s' and '%s'", name, dep)).
				WithDetail("instance", name).
				WithDetail("depends_on", dep)
		}
		c.reg.RegisterDependency(dep, name)
		if _, err := c.GetBean(ctx, dep); err != nil {
			if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrCodeCurrentlyInCreation {
				return nil, err
			}
			return nil, errors.ConstructionFailed(name, err).WithDetail("depends_on", dep)
		}
	}

	return c.reg.GetOrCreate(ctx, name, func(ctx context.Context) (any, error) {
		v, err := c.createBean(ctx, name, def)
		if err != nil {
			c.reg.DestroySingleton(ctx, name)
			return nil, err
		}
		return v, nil
	})
}

func (c *Container) createBean(ctx context.Context, name string, def *Definition) (any, error) {
	raw, err := def.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	if util.IsNil(raw) {
		return nil, errors.ConstructionFailed(name, fmt.Errorf("instantiate returned nil"))
	}

	procs := c.processorsFor(def)
	early := c.allowCircular && c.reg.IsCurrentlyInCreation(name)
	if early {
		hooks := processorsOf[EarlyReferenceProcessor](procs)
		if err := registry.ExposeEarly(ctx, c.reg, name, raw, hooks...); err != nil {
			return nil, err
		}
	}

	if def.Populate != nil {
		if err := def.Populate(ctx, raw, Deps{c: c, name: name}); err != nil {
			return nil, err
		}
	}

	initialized, err := c.initialize(ctx, name, def, raw, procs)
	if err != nil {
		return nil, err
	}

	exposed := initialized
	if early {
		if ref, ok := c.reg.EarlyValue(ctx, name); ok {
			if exposed, err = c.reconcile(name, raw, initialized, ref); err != nil {
				return nil, err
			}
			for _, f := range processorsOf[TargetFinalizer](procs) {
				if err := f.FinalizeTarget(ctx, name, initialized); err != nil {
					return nil, err
				}
			}
		}
	}

	c.registerDisposable(name, def, raw, procs)
	return exposed, nil
}

// initialize runs the before-initialization processors, Init and the
// after-initialization processors. A processor returning nil leaves the
// current instance in place.
func (c *Container) initialize(ctx context.Context, name string, def *Definition, raw any, procs []any) (any, error) {
	current := raw
	for _, p := range processorsOf[BeforeInitProcessor](procs) {
		v, err := p.BeforeInitialization(ctx, current, name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			current = v
		}
	}
	if def.Init != nil {
		if err := def.Init(ctx, current); err != nil {
			return nil, err
		}
	}
	for _, p := range processorsOf[AfterInitProcessor](procs) {
		v, err := p.AfterInitialization(ctx, current, name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			current = v
		}
	}
	return current, nil
}

// reconcile picks the exposed value of an instance whose early reference
// was handed out. If initialization kept the raw instance, the early
// reference wins so every holder sees the same value.
func (c *Container) reconcile(name string, raw, initialized, ref any) (any, error) {
	if util.SameInstance(initialized, raw) {
		return ref, nil
	}
	if !c.reg.HasDependents(name) {
		return initialized, nil
	}
	dependents := c.reg.Dependents(name)
	if !c.allowRaw {
		return nil, errors.EarlyReferenceMismatch(name, dependents)
	}
	c.log.Warn("collaborators hold an early reference that initialization replaced", logger.Fields(
		logger.FieldInstance, name,
		"dependents", dependents,
	))
	return initialized, nil
}

func (c *Container) registerDisposable(name string, def *Definition, raw any, procs []any) {
	destroy := destroyFunc(def, raw)
	dps := processorsOf[DestructionProcessor](procs)
	if destroy == nil && len(dps) == 0 {
		return
	}
	c.reg.RegisterDisposable(name, registry.DisposerFunc(func(ctx context.Context) error {
		for _, p := range dps {
			if err := p.BeforeDestruction(ctx, raw, name); err != nil {
				c.log.Warn("destruction processor failed", logger.ErrorFields(name, "before_destruction", err))
			}
		}
		if destroy != nil {
			return destroy(ctx)
		}
		return nil
	}))
}

// NamesForType returns the names of definitions and registered instances
// whose type is t or, for interface t, implements it. Finished instances are
// matched by their actual type and never created by the lookup.
func (c *Container) NamesForType(t reflect.Type) []string {
	c.mu.RLock()
	names := slices.Clone(c.order)
	defs := make(map[string]*Definition, len(c.defs))
	for k, v := range c.defs {
		defs[k] = v
	}
	procs := slices.Clone(c.processors)
	c.mu.RUnlock()

	out := util.Filter(names, func(name string) bool {
		return typeMatches(c.typeOf(name, defs[name], procs), t)
	})
	registered := util.Filter(c.reg.Names(), func(name string) bool {
		_, isDef := defs[name]
		return !isDef && typeMatches(c.typeOf(name, nil, nil), t)
	})
	return append(out, registered...)
}

func (c *Container) typeOf(name string, def *Definition, procs []any) reflect.Type {
	if c.reg.Contains(name) {
		if v, ok, _ := c.reg.Get(context.Background(), name); ok {
			return reflect.TypeOf(v)
		}
	}
	for _, p := range processorsOf[TypePredictor](procs) {
		if t, ok := p.PredictType(name); ok {
			return t
		}
	}
	if def != nil {
		return def.Type
	}
	return nil
}

func typeMatches(have, want reflect.Type) bool {
	if have == nil || want == nil {
		return false
	}
	if have == want {
		return true
	}
	return want.Kind() == reflect.Interface && have.Implements(want)
}

// IsCurrentlyInCreation reports whether name is being created.
func (c *Container) IsCurrentlyInCreation(name string) bool {
	return c.reg.IsCurrentlyInCreation(name)
}

// OnSuppressed records a failure tolerated while creating instances.
func (c *Container) OnSuppressed(ctx context.Context, err error) {
	c.reg.OnSuppressed(ctx, err)
}

// PreInstantiate creates every non-lazy definition in registration order,
// then notifies instances implementing SingletonsInstantiated.
func (c *Container) PreInstantiate(ctx context.Context) error {
	c.mu.RLock()
	names := slices.Clone(c.order)
	c.mu.RUnlock()

	for _, name := range names {
		def, ok := c.definition(name)
		if !ok || def.Lazy {
			continue
		}
		if _, err := c.GetBean(ctx, name); err != nil {
			return err
		}
	}

	for _, name := range c.reg.Names() {
		v, ok, err := c.reg.Get(ctx, name)
		if err != nil || !ok {
			continue
		}
		if s, ok := v.(SingletonsInstantiated); ok {
			if err := s.AfterSingletonsInstantiated(ctx); err != nil {
				return err
			}
		}
	}

	c.log.Info("instances pre-instantiated", logger.Fields(logger.FieldCount, c.reg.Count()))
	return nil
}

type resetter interface {
	Reset()
}

// Close destroys every instance and resets the processors' caches.
// Definitions stay registered, so instances can be created again.
func (c *Container) Close(ctx context.Context) error {
	c.reg.DestroyAll(ctx)

	c.mu.RLock()
	procs := slices.Clone(c.processors)
	c.mu.RUnlock()
	for _, r := range processorsOf[resetter](procs) {
		r.Reset()
	}
	c.started.Store(false)
	c.log.Info("container closed")
	return nil
}

// Name implements component.Component.
func (c *Container) Name() string { return c.name }

// Start pre-instantiates the eager instances unless pre-instantiation is
// disabled in the settings.
func (c *Container) Start(ctx context.Context) error {
	if c.preInstantiate {
		if err := c.PreInstantiate(ctx); err != nil {
			return err
		}
	}
	c.started.Store(true)
	return nil
}

// Stop closes the container.
func (c *Container) Stop(ctx context.Context) error {
	return c.Close(ctx)
}

// Health reports the container as healthy once started.
func (c *Container) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.name, Status: component.StatusHealthy}
	switch {
	case c.reg.IsDestroying():
		h.Status = component.StatusUnhealthy
		h.Message = "destroying instances"
	case !c.started.Load():
		h.Status = component.StatusDegraded
		h.Message = "not started"
	default:
		h.Message = fmt.Sprintf("%d instances", c.reg.Count())
	}
	return h
}

// Describe implements component.Describable.
func (c *Container) Describe() component.Description {
	c.mu.RLock()
	defs, procs := len(c.defs), len(c.processors)
	c.mu.RUnlock()
	return component.Description{
		Name:    "Container",
		Type:    "container",
		Details: fmt.Sprintf("definitions=%d processors=%d circular=%t", defs, procs, c.allowCircular),
	}
}
