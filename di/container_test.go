package di

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/ioc/aop"
	"github.com/kbukum/ioc/component"
	"github.com/kbukum/ioc/config"
	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/registry"
	"github.com/kbukum/ioc/util"
)

type Named interface {
	Who(ctx context.Context) (string, error)
}

type serviceA struct {
	b         *serviceB
	populated bool
}

func (a *serviceA) Who(context.Context) (string, error) {
	if !a.populated {
		return "", stderrors.New("a is not populated")
	}
	return "a", nil
}

type serviceB struct {
	a Named
}

func (b *serviceB) Who(context.Context) (string, error) { return "b", nil }

type namedProxy struct{ p *aop.Proxy }

func (n namedProxy) Who(ctx context.Context) (string, error) {
	return aop.Call[string](ctx, n.p, "Who")
}

func newTestContainer(opts ...Option) *Container {
	reg := registry.New(registry.WithLogger(logger.Nop()))
	return New(append([]Option{WithLogger(logger.Nop()), WithRegistry(reg)}, opts...)...)
}

// registerCycle registers a <-> b.
func registerCycle(t *testing.T, c *Container) {
	t.Helper()
	require.NoError(t, c.Register(Define("a",
		func(context.Context) (*serviceA, error) { return &serviceA{}, nil },
		func(ctx context.Context, a *serviceA, deps Deps) error {
			b, err := Resolve[*serviceB](ctx, deps, "b")
			if err != nil {
				return err
			}
			a.b = b
			a.populated = true
			return nil
		})))
	require.NoError(t, c.Register(Define("b",
		func(context.Context) (*serviceB, error) { return &serviceB{}, nil },
		func(ctx context.Context, b *serviceB, deps Deps) error {
			a, err := Resolve[Named](ctx, deps, "a")
			if err != nil {
				return err
			}
			b.a = a
			return nil
		})))
}

func newInterceptingCreator(trace *[]string, patterns ...string) *aop.AutoProxyCreator {
	record := aop.InterceptorFunc(func(inv *aop.Invocation) ([]any, error) {
		*trace = append(*trace, inv.Method())
		return inv.Proceed()
	})
	return aop.NewAutoProxyCreator(
		aop.WithLogger(logger.Nop()),
		aop.WithAdvisors(aop.NewAdvisor(record, aop.WithMatchers(aop.Names(patterns...)))),
		aop.WithStrategies(aop.ForInterface(func(p *aop.Proxy) Named { return namedProxy{p} })),
	)
}

func TestGetBeanCachesInstance(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	var calls int
	require.NoError(t, c.Register(Define("b", func(context.Context) (*serviceB, error) {
		calls++
		return &serviceB{}, nil
	}, nil)))

	first, err := c.GetBean(ctx, "b")
	require.NoError(t, err)
	second, err := c.GetBean(ctx, "b")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = c.GetBean(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRegisterValidatesDefinitions(t *testing.T) {
	c := newTestContainer()
	instantiate := func(context.Context) (any, error) { return 1, nil }

	err := c.Register(Definition{Instantiate: instantiate})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = c.Register(Definition{Name: "bad name", Instantiate: instantiate})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = c.Register(Definition{Name: "x"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = c.Register(Definition{Name: "x", Instantiate: instantiate, DependsOn: []string{""}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	require.NoError(t, c.Register(Definition{Name: "x", Instantiate: instantiate}))
	err = c.Register(Definition{Name: "x", Instantiate: instantiate})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, []string{"x"}, c.DefinitionNames())
}

func TestCircularReferenceWithoutInterception(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	registerCycle(t, c)

	a, err := Resolve[*serviceA](ctx, c, "a")
	require.NoError(t, err)
	b, err := Resolve[*serviceB](ctx, c, "b")
	require.NoError(t, err)

	assert.True(t, a.populated)
	assert.Same(t, b, a.b)
	assert.Same(t, a, b.a.(*serviceA))
	assert.Equal(t, []string{"b"}, c.Registry().Dependents("a"))
	assert.Equal(t, []string{"a"}, c.Registry().Dependents("b"))
}

func TestCircularReferenceWithInterceptionOfEarlyInstance(t *testing.T) {
	ctx := context.Background()
	var trace []string
	c := newTestContainer()
	require.NoError(t, c.AddPostProcessor(newInterceptingCreator(&trace, "a")))
	registerCycle(t, c)

	a, err := c.GetBean(ctx, "a")
	require.NoError(t, err)
	proxy, ok := a.(namedProxy)
	require.True(t, ok, "a is exposed as its proxy")

	b, err := Resolve[*serviceB](ctx, c, "b")
	require.NoError(t, err)
	assert.True(t, util.SameInstance(proxy, b.a), "b holds the same proxy the container exposes")

	who, err := b.a.Who(ctx)
	require.NoError(t, err, "the proxy reaches the populated instance")
	assert.Equal(t, "a", who)
	assert.Equal(t, []string{"Who"}, trace)

	raw := proxy.p.Target().(*serviceA)
	assert.True(t, raw.populated)
	assert.Same(t, b, raw.b)
}

func TestCircularReferenceWithInterceptionOfLateInstance(t *testing.T) {
	ctx := context.Background()
	var trace []string
	c := newTestContainer()
	require.NoError(t, c.AddPostProcessor(newInterceptingCreator(&trace, "a")))
	registerCycle(t, c)

	// b is requested first, so a is created and wrapped while b is in creation.
	b, err := Resolve[*serviceB](ctx, c, "b")
	require.NoError(t, err)
	a, err := c.GetBean(ctx, "a")
	require.NoError(t, err)

	_, ok := a.(namedProxy)
	require.True(t, ok)
	assert.True(t, util.SameInstance(a, b.a))
	who, err := b.a.Who(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", who)
}

func TestCircularReferenceDisallowed(t *testing.T) {
	c := newTestContainer(WithAllowCircularReferences(false))
	registerCycle(t, c)

	_, err := c.GetBean(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCurrentlyInCreation)
	assert.False(t, c.Registry().Contains("a"))
	assert.False(t, c.Registry().Contains("b"))
}

type wrapped struct{ Named }

// wrapping replaces a after initialization without involving the early
// reference.
type wrapping struct{ name string }

func (w wrapping) AfterInitialization(_ context.Context, instance any, name string) (any, error) {
	if name != w.name {
		return instance, nil
	}
	return &wrapped{Named: instance.(Named)}, nil
}

func TestEarlyReferenceMismatch(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	require.NoError(t, c.AddPostProcessor(wrapping{name: "a"}))
	registerCycle(t, c)

	_, err := c.GetBean(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEarlyReferenceMismatch)
	assert.False(t, c.Registry().Contains("a"))
	assert.False(t, c.Registry().Contains("b"), "b held the raw reference and is destroyed with a")
}

func TestEarlyReferenceMismatchTolerated(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(WithAllowRawInjectionDespiteWrapping(true))
	require.NoError(t, c.AddPostProcessor(wrapping{name: "a"}))
	registerCycle(t, c)

	a, err := c.GetBean(ctx, "a")
	require.NoError(t, err)
	w, ok := a.(*wrapped)
	require.True(t, ok)

	b, err := Resolve[*serviceB](ctx, c, "b")
	require.NoError(t, err)
	assert.Same(t, w.Named, b.a, "b keeps the raw instance")
}

func TestDependsOn(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	var events []string
	def := func(name string, dependsOn ...string) Definition {
		return Definition{
			Name:        name,
			DependsOn:   dependsOn,
			Instantiate: func(context.Context) (any, error) {
				events = append(events, "create "+name)
				return &serviceB{}, nil
			},
			Destroy: func(context.Context, any) error {
				events = append(events, "destroy "+name)
				return nil
			},
		}
	}
	require.NoError(t, c.Register(def("web", "db")))
	require.NoError(t, c.Register(def("db")))

	_, err := c.GetBean(ctx, "web")
	require.NoError(t, err)
	assert.True(t, c.Registry().IsDependent("db", "web"))

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"create db", "create web", "destroy web", "destroy db"}, events)
}

func TestCircularDependsOnFails(t *testing.T) {
	c := newTestContainer()
	instantiate := func(context.Context) (any, error) { return &serviceB{}, nil }
	require.NoError(t, c.Register(Definition{Name: "x", DependsOn: []string{"y"}, Instantiate: instantiate}))
	require.NoError(t, c.Register(Definition{Name: "y", DependsOn: []string{"x"}, Instantiate: instantiate}))

	_, err := c.GetBean(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCurrentlyInCreation)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCurrentlyInCreation, appErr.Code, "propagated without a construction wrapper")
	assert.False(t, errors.HasCode(err, errors.ErrCodeConstructionFailed))
}

func TestCircularDependsOnThroughChainKeepsCode(t *testing.T) {
	c := newTestContainer()
	instantiate := func(context.Context) (any, error) { return &serviceB{}, nil }
	require.NoError(t, c.Register(Definition{Name: "x", DependsOn: []string{"y"}, Instantiate: instantiate}))
	require.NoError(t, c.Register(Definition{Name: "y", DependsOn: []string{"z"}, Instantiate: instantiate}))
	require.NoError(t, c.Register(Definition{Name: "z", DependsOn: []string{"x"}, Instantiate: instantiate}))

	_, err := c.GetBean(context.Background(), "x")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCurrentlyInCreation, appErr.Code)
	assert.False(t, c.Registry().Contains("x"))
}

func TestMissingDependsOn(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Register(Definition{
		Name:        "x",
		DependsOn:   []string{"ghost"},
		Instantiate: func(context.Context) (any, error) { return 1, nil },
	}))

	_, err := c.GetBean(context.Background(), "x")
	assert.ErrorIs(t, err, errors.ErrConstructionFailed)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestInstantiateFailureCanBeRetried(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	fail := true
	require.NoError(t, c.Register(Definition{
		Name: "flaky",
		Instantiate: func(context.Context) (any, error) {
			if fail {
				return nil, stderrors.New("not yet")
			}
			return &serviceB{}, nil
		},
	}))

	_, err := c.GetBean(ctx, "flaky")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConstructionFailed)

	fail = false
	v, err := c.GetBean(ctx, "flaky")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestInstantiateTypedNilFails(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Register(Define("nil", func(context.Context) (*serviceB, error) { return nil, nil }, nil)))

	_, err := c.GetBean(context.Background(), "nil")
	assert.ErrorIs(t, err, errors.ErrConstructionFailed)
}

type orderProbe struct {
	tag   string
	order int
	trace *[]string
}

func (p *orderProbe) BeforeInitialization(_ context.Context, instance any, _ string) (any, error) {
	*p.trace = append(*p.trace, p.tag)
	return instance, nil
}

type orderedProbe struct{ *orderProbe }

func (p orderedProbe) Order() int { return p.order }

type priorityProbe struct{ orderedProbe }

func (priorityProbe) PriorityOrdered() {}

func TestPostProcessorTiers(t *testing.T) {
	var trace []string
	c := newTestContainer()
	probe := func(tag string, order int) *orderProbe { return &orderProbe{tag: tag, order: order, trace: &trace} }

	require.NoError(t, c.AddPostProcessor(probe("plain-1", 0)))
	require.NoError(t, c.AddPostProcessor(orderedProbe{probe("ordered-5", 5)}))
	require.NoError(t, c.AddPostProcessor(priorityProbe{orderedProbe{probe("priority-9", 9)}}))
	require.NoError(t, c.AddPostProcessor(probe("plain-2", 0)))
	require.NoError(t, c.AddPostProcessor(orderedProbe{probe("ordered-1", 1)}))
	require.NoError(t, c.AddPostProcessor(priorityProbe{orderedProbe{probe("priority-2", 2)}}))

	require.NoError(t, c.Register(Define("b", func(context.Context) (*serviceB, error) { return &serviceB{}, nil }, nil)))
	_, err := c.GetBean(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"priority-2", "priority-9", "ordered-1", "ordered-5", "plain-1", "plain-2"}, trace)
}

func TestAddPostProcessorRejectsOtherValues(t *testing.T) {
	c := newTestContainer()
	assert.ErrorIs(t, c.AddPostProcessor(nil), errors.ErrInvalidInput)
	assert.ErrorIs(t, c.AddPostProcessor(&serviceB{}), errors.ErrInvalidInput)
}

func TestInfrastructureRoleSkipsProcessors(t *testing.T) {
	var trace []string
	c := newTestContainer()
	require.NoError(t, c.AddPostProcessor(&orderProbe{tag: "probe", trace: &trace}))

	def := Define("infra", func(context.Context) (*serviceB, error) { return &serviceB{}, nil }, nil)
	def.Role = RoleInfrastructure
	require.NoError(t, c.Register(def))

	_, err := c.GetBean(context.Background(), "infra")
	require.NoError(t, err)
	assert.Empty(t, trace)
}

type closable struct {
	name   string
	events *[]string
}

func (c *closable) Close() error {
	*c.events = append(*c.events, c.name)
	return nil
}

type lifecycleProbe struct {
	calls int
}

func (p *lifecycleProbe) AfterSingletonsInstantiated(context.Context) error {
	p.calls++
	return nil
}

func TestPreInstantiateAndClose(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	var closed []string
	probe := &lifecycleProbe{}

	for _, name := range []string{"first", "second"} {
		require.NoError(t, c.Register(Define(name, func(context.Context) (*closable, error) {
			return &closable{name: name, events: &closed}, nil
		}, nil)))
	}
	lazy := Define("lazy", func(context.Context) (*closable, error) {
		return &closable{name: "lazy", events: &closed}, nil
	}, nil)
	lazy.Lazy = true
	require.NoError(t, c.Register(lazy))
	require.NoError(t, c.Register(Define("probe", func(context.Context) (*lifecycleProbe, error) { return probe, nil }, nil)))

	require.NoError(t, c.PreInstantiate(ctx))
	assert.Equal(t, []string{"first", "second", "probe"}, c.Registry().Names())
	assert.Equal(t, 1, probe.calls)

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"second", "first"}, closed)
	assert.Zero(t, c.Registry().Count())
}

type initProbe struct {
	initialized bool
}

func TestInitAndDestroyCallbacks(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	var destroyed any
	def := Define("probe", func(context.Context) (*initProbe, error) { return &initProbe{}, nil }, nil)
	def.Init = func(_ context.Context, instance any) error {
		instance.(*initProbe).initialized = true
		return nil
	}
	def.Destroy = func(_ context.Context, instance any) error {
		destroyed = instance
		return nil
	}
	require.NoError(t, c.Register(def))

	v, err := Resolve[*initProbe](ctx, c, "probe")
	require.NoError(t, err)
	assert.True(t, v.initialized)

	require.NoError(t, c.Close(ctx))
	assert.Same(t, v, destroyed)
}

func TestInitFailureRemovesInstance(t *testing.T) {
	c := newTestContainer()
	def := Define("probe", func(context.Context) (*initProbe, error) { return &initProbe{}, nil }, nil)
	def.Init = func(context.Context, any) error { return stderrors.New("init failed") }
	require.NoError(t, c.Register(def))

	_, err := c.GetBean(context.Background(), "probe")
	assert.ErrorIs(t, err, errors.ErrConstructionFailed)
	assert.False(t, c.Registry().Contains("probe"))
}

func TestResolveHelpers(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	require.NoError(t, c.Register(Define("b", func(context.Context) (*serviceB, error) { return &serviceB{}, nil }, nil)))

	named, err := Resolve[Named](ctx, c, "b")
	require.NoError(t, err)
	who, err := named.Who(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", who)

	_, err = Resolve[*serviceA](ctx, c, "b")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, ok := TryResolve[*serviceB](ctx, c, "missing")
	assert.False(t, ok)
	_, ok = TryResolve[*serviceB](ctx, c, "b")
	assert.True(t, ok)

	assert.Panics(t, func() { MustResolve[*serviceA](ctx, c, "b") })
	assert.NotPanics(t, func() { MustResolve[*serviceB](ctx, c, "b") })
}

func TestNamesForType(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer()
	registerCycle(t, c)
	require.NoError(t, c.Register(Definition{
		Name:        "untyped",
		Instantiate: func(context.Context) (any, error) { return &serviceB{}, nil },
	}))
	require.NoError(t, c.RegisterSingleton(ctx, "manual", &serviceA{}))

	namedType := reflect.TypeFor[Named]()
	assert.Equal(t, []string{"a", "b", "manual"}, c.NamesForType(namedType))
	assert.Equal(t, []string{"b"}, c.NamesForType(reflect.TypeFor[*serviceB]()))

	_, err := c.GetBean(ctx, "untyped")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "untyped"}, c.NamesForType(reflect.TypeFor[*serviceB]()))
}

func TestBeanAdvisorsFromContainer(t *testing.T) {
	ctx := context.Background()
	var trace []string
	c := newTestContainer()

	record := aop.InterceptorFunc(func(inv *aop.Invocation) ([]any, error) {
		trace = append(trace, inv.Method())
		return inv.Proceed()
	})
	require.NoError(t, c.Register(Define("tracingAdvisor", func(context.Context) (*aop.DefaultAdvisor, error) {
		return aop.NewAdvisor(record, aop.WithMatchers(aop.Names("b"))), nil
	}, nil)))
	require.NoError(t, c.AddPostProcessor(aop.NewAutoProxyCreator(
		aop.WithLogger(logger.Nop()),
		aop.WithAdvisorSource(aop.BeanAdvisors(c)),
		aop.WithStrategies(aop.ForInterface(func(p *aop.Proxy) Named { return namedProxy{p} })),
	)))
	require.NoError(t, c.Register(Define("b", func(context.Context) (*serviceB, error) { return &serviceB{}, nil }, nil)))

	b, err := Resolve[Named](ctx, c, "b")
	require.NoError(t, err)
	_, ok := b.(namedProxy)
	require.True(t, ok)
	_, err = b.Who(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Who"}, trace)

	predicted := c.NamesForType(reflect.TypeFor[namedProxy]())
	assert.Equal(t, []string{"b"}, predicted)
}

func TestContainerComponent(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(WithName("app"), WithSettings(config.RegistryConfig{
		AllowCircularReferences: true,
		PreInstantiate:          true,
	}))
	var _ component.Component = c
	registerCycle(t, c)

	assert.Equal(t, "app", c.Name())
	assert.Equal(t, component.StatusDegraded, c.Health(ctx).Status)

	require.NoError(t, c.Start(ctx))
	h := c.Health(ctx)
	assert.Equal(t, component.StatusHealthy, h.Status)
	assert.Equal(t, "2 instances", h.Message)

	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, component.StatusDegraded, c.Health(ctx).Status)
	assert.Contains(t, c.Describe().Details, "definitions=2")
}

func TestContainerStartWithoutPreInstantiation(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(WithSettings(config.RegistryConfig{AllowCircularReferences: true}))
	registerCycle(t, c)

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 0, c.Registry().Count())
	assert.Equal(t, component.StatusHealthy, c.Health(ctx).Status)
}
