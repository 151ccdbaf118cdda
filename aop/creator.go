package aop

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/util"
)

// AdvisorSource supplies the candidate advisors considered for every instance.
type AdvisorSource interface {
	CandidateAdvisors(ctx context.Context) ([]Advisor, error)
}

// AdvisorSourceFunc adapts a function to AdvisorSource.
type AdvisorSourceFunc func(ctx context.Context) ([]Advisor, error)

func (f AdvisorSourceFunc) CandidateAdvisors(ctx context.Context) ([]Advisor, error) { return f(ctx) }

// BeanLookup is the view of a container the creator needs to resolve
// advisors and named interceptors that are themselves managed instances.
type BeanLookup interface {
	GetBean(ctx context.Context, name string) (any, error)
	IsCurrentlyInCreation(name string) bool
	NamesForType(t reflect.Type) []string
}

// suppressor is implemented by lookups that record skipped failures.
type suppressor interface {
	OnSuppressed(ctx context.Context, err error)
}

var advisorType = reflect.TypeFor[Advisor]()

type beanAdvisors struct {
	lookup BeanLookup
}

// BeanAdvisors returns a source over every managed instance implementing
// Advisor. Advisors still in creation are skipped, so an advisor that
// depends on an advised instance does not deadlock its own discovery.
func BeanAdvisors(lookup BeanLookup) AdvisorSource {
	return beanAdvisors{lookup: lookup}
}

func (s beanAdvisors) CandidateAdvisors(ctx context.Context) ([]Advisor, error) {
	var out []Advisor
	for _, name := range s.lookup.NamesForType(advisorType) {
		if s.lookup.IsCurrentlyInCreation(name) {
			continue
		}
		v, err := s.lookup.GetBean(ctx, name)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeCurrentlyInCreation) {
				if sup, ok := s.lookup.(suppressor); ok {
					sup.OnSuppressed(ctx, err)
				}
				continue
			}
			return nil, err
		}
		if a, ok := v.(Advisor); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// AutoProxyCreator decides, per instance, whether any advisor applies and
// wraps eligible instances in a proxy. It is both the early exposure hook and
// the after-initialization step for intercepted instances: an instance
// wrapped early is never wrapped again.
type AutoProxyCreator struct {
	log        *logger.Logger
	source     AdvisorSource
	adapters   *AdapterRegistry
	strategies []Strategy
	reflective bool
	comparator Comparator
	skip       func(t reflect.Type, name string) bool
	order      int

	commonAdvice     []any
	interceptorNames []string
	lookup           BeanLookup
	commonFirst      bool

	decisions  sync.Map // cache key -> bool
	earlyRefs  sync.Map // cache key -> struct{}
	holders    sync.Map // cache key -> *TargetHolder
	proxyTypes sync.Map // cache key -> reflect.Type
}

// CreatorOption configures an AutoProxyCreator.
type CreatorOption func(*AutoProxyCreator)

// WithAdvisorSource sets where candidate advisors come from.
func WithAdvisorSource(src AdvisorSource) CreatorOption {
	return func(c *AutoProxyCreator) { c.source = src }
}

// WithAdvisors uses a fixed advisor list.
func WithAdvisors(advisors ...Advisor) CreatorOption {
	return func(c *AutoProxyCreator) { c.source = StaticAdvisors(advisors) }
}

// WithStrategies adds proxy strategies. They are tried in order before the
// reflective fallback.
func WithStrategies(s ...Strategy) CreatorOption {
	return func(c *AutoProxyCreator) { c.strategies = append(c.strategies, s...) }
}

// WithReflectiveProxies enables or disables the reflective fallback
// strategy. It is enabled by default.
func WithReflectiveProxies(enabled bool) CreatorOption {
	return func(c *AutoProxyCreator) { c.reflective = enabled }
}

// WithComparator replaces ByOrder for sorting eligible advisors.
func WithComparator(cmp Comparator) CreatorOption {
	return func(c *AutoProxyCreator) { c.comparator = cmp }
}

// WithSkip excludes instances for which skip returns true.
func WithSkip(skip func(t reflect.Type, name string) bool) CreatorOption {
	return func(c *AutoProxyCreator) { c.skip = skip }
}

// WithCommonInterceptors adds advice applied to every proxy the creator
// builds. Values may be advisors or any supported advice kind.
func WithCommonInterceptors(advice ...any) CreatorOption {
	return func(c *AutoProxyCreator) { c.commonAdvice = append(c.commonAdvice, advice...) }
}

// WithInterceptorNames adds common interceptors resolved by name from lookup
// each time a proxy is built.
func WithInterceptorNames(lookup BeanLookup, names ...string) CreatorOption {
	return func(c *AutoProxyCreator) {
		c.lookup = lookup
		c.interceptorNames = append(c.interceptorNames, names...)
	}
}

// WithApplyCommonInterceptorsFirst places common interceptors before (true,
// the default) or after the instance-specific advisors.
func WithApplyCommonInterceptorsFirst(first bool) CreatorOption {
	return func(c *AutoProxyCreator) { c.commonFirst = first }
}

// WithAdapters sets the adapter registry used to turn advice into interceptors.
func WithAdapters(r *AdapterRegistry) CreatorOption {
	return func(c *AutoProxyCreator) { c.adapters = r }
}

// WithProxyOrder sets the order the creator reports among post-processors.
func WithProxyOrder(order int) CreatorOption {
	return func(c *AutoProxyCreator) { c.order = order }
}

// WithLogger sets the creator logger.
func WithLogger(l *logger.Logger) CreatorOption {
	return func(c *AutoProxyCreator) { c.log = l }
}

// NewAutoProxyCreator creates a proxy creator.
func NewAutoProxyCreator(opts ...CreatorOption) *AutoProxyCreator {
	c := &AutoProxyCreator{
		reflective:  true,
		comparator:  ByOrder,
		commonFirst: true,
		order:       LowestPrecedence,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get("aop")
	}
	if c.adapters == nil {
		c.adapters = NewAdapterRegistry()
	}
	return c
}

// Order returns the creator's post-processor order.
func (c *AutoProxyCreator) Order() int { return c.order }

func (c *AutoProxyCreator) Infrastructure() {}

// EarlyReference returns the reference to hand out for raw while it is still
// being populated. If the instance is eligible the result is a proxy whose
// target can be rebound once by FinalizeTarget.
func (c *AutoProxyCreator) EarlyReference(ctx context.Context, raw any, name string) (any, error) {
	key := cacheKey(raw, name)
	c.earlyRefs.Store(key, struct{}{})
	return c.wrap(ctx, raw, name, key, true)
}

// AfterInitialization returns the proxy for instance, or instance itself
// when no advisor applies. Instances already handed out through
// EarlyReference are returned unchanged.
func (c *AutoProxyCreator) AfterInitialization(ctx context.Context, instance any, name string) (any, error) {
	if instance == nil {
		return nil, nil
	}
	key := cacheKey(instance, name)
	if _, early := c.earlyRefs.Load(key); early {
		return instance, nil
	}
	return c.wrap(ctx, instance, name, key, false)
}

// FinalizeTarget points the early proxy of name at target, the instance
// initialization produced. It is a no-op for instances that were not
// exposed early or were not wrapped, and fails on a second call.
func (c *AutoProxyCreator) FinalizeTarget(ctx context.Context, name string, target any) error {
	key := cacheKey(target, name)
	if _, early := c.earlyRefs.Load(key); !early {
		return nil
	}
	h, ok := c.holders.Load(key)
	if !ok {
		return nil
	}
	holder := h.(*TargetHolder)
	if holder.Rebound() {
		return errors.InvalidInput("name", fmt.Sprintf("early proxy of '%s' already finalized", name)).
			WithDetail("instance", name)
	}
	if err := holder.Rebind(target); err != nil {
		return errors.InvalidInput("name", err.Error()).WithDetail("instance", name)
	}
	c.log.Debug("early proxy target finalized", logger.Fields(
		logger.FieldInstance, name,
		logger.FieldProxy, util.TypeName(target),
	))
	return nil
}

// PredictType returns the type of the proxy built for name, if any.
func (c *AutoProxyCreator) PredictType(name string) (reflect.Type, bool) {
	t, ok := c.proxyTypes.Load(name)
	if !ok {
		return nil, false
	}
	return t.(reflect.Type), true
}

// IsWrapped reports whether a proxy was built for name.
func (c *AutoProxyCreator) IsWrapped(name string) bool {
	v, ok := c.decisions.Load(name)
	return ok && v.(bool)
}

// Reset forgets every decision, early reference and holder.
func (c *AutoProxyCreator) Reset() {
	c.decisions.Clear()
	c.earlyRefs.Clear()
	c.holders.Clear()
	c.proxyTypes.Clear()
}

func cacheKey(instance any, name string) any {
	if name != "" {
		return name
	}
	return reflect.TypeOf(instance)
}

func (c *AutoProxyCreator) wrap(ctx context.Context, instance any, name string, key any, early bool) (any, error) {
	if v, ok := c.decisions.Load(key); ok && !v.(bool) {
		return instance, nil
	}
	t := reflect.TypeOf(instance)
	if isInfrastructure(instance) || (c.skip != nil && c.skip(t, name)) {
		c.decisions.Store(key, false)
		return instance, nil
	}

	specific, err := c.eligibleAdvisors(ctx, instance, t, name)
	if err != nil {
		return nil, err
	}
	if len(specific) == 0 {
		c.decisions.Store(key, false)
		return instance, nil
	}
	c.decisions.Store(key, true)

	advisors, err := c.buildAdvisors(ctx, name, specific)
	if err != nil {
		return nil, err
	}
	holder := newBoundHolder(instance)
	if early {
		holder = NewTargetHolder(instance)
	}
	proxy, err := c.createProxy(name, t, holder, advisors)
	if err != nil {
		return nil, err
	}
	c.holders.Store(key, holder)
	c.proxyTypes.Store(key, reflect.TypeOf(proxy))
	return proxy, nil
}

// isInfrastructure reports whether v is part of the interception machinery
// and must never be proxied.
func isInfrastructure(v any) bool {
	switch v.(type) {
	case Infrastructure, Advisor, Matcher, AdvisorSource:
		return true
	}
	return isAdvice(v)
}

// eligibleAdvisors filters the candidates applying to instance and sorts
// them stably, so equal orders keep candidate order.
func (c *AutoProxyCreator) eligibleAdvisors(ctx context.Context, instance any, t reflect.Type, name string) ([]Advisor, error) {
	if c.source == nil {
		return nil, nil
	}
	candidates, err := c.source.CandidateAdvisors(ctx)
	if err != nil {
		return nil, err
	}
	var eligible []Advisor
	for _, a := range candidates {
		if util.SameInstance(a, instance) || util.SameInstance(a.Advice(), instance) {
			continue
		}
		if canApply(a, t, name) {
			eligible = append(eligible, a)
		}
	}
	slices.SortStableFunc(eligible, c.comparator)
	return eligible, nil
}

// buildAdvisors merges the common interceptors with the instance-specific
// advisors.
func (c *AutoProxyCreator) buildAdvisors(ctx context.Context, name string, specific []Advisor) ([]Advisor, error) {
	common := make([]Advisor, 0, len(c.commonAdvice)+len(c.interceptorNames))
	for _, v := range c.commonAdvice {
		a, err := c.adapters.Wrap(v)
		if err != nil {
			return nil, err
		}
		common = append(common, a)
	}
	for _, n := range c.interceptorNames {
		if c.lookup == nil || c.lookup.IsCurrentlyInCreation(n) {
			continue
		}
		v, err := c.lookup.GetBean(ctx, n)
		if err != nil {
			return nil, err
		}
		a, err := c.adapters.Wrap(v)
		if err != nil {
			return nil, err
		}
		common = append(common, a)
	}

	c.log.Debug("creating implicit proxy", logger.Fields(
		logger.FieldInstance, name,
		"common_interceptors", len(common),
		"specific_interceptors", len(specific),
	))

	out := make([]Advisor, 0, len(common)+len(specific))
	if c.commonFirst {
		out = append(append(out, common...), specific...)
	} else {
		out = append(append(out, specific...), common...)
	}
	return out, nil
}

func (c *AutoProxyCreator) createProxy(name string, t reflect.Type, holder *TargetHolder, advisors []Advisor) (any, error) {
	for _, a := range advisors {
		if _, err := c.adapters.Interceptors(a); err != nil {
			return nil, errors.UnresolvableInterceptionTarget(name, err.Error()).WithCause(err)
		}
	}
	p := NewProxy(name, holder, advisors, c.adapters)
	for _, s := range c.strategies {
		if s.Supports(t) {
			return c.built(p, s.Build(p)), nil
		}
	}
	if c.reflective {
		if s := Reflective(); s.Supports(t) {
			return c.built(p, s.Build(p)), nil
		}
	}
	return nil, errors.UnresolvableInterceptionTarget(name,
		fmt.Sprintf("no proxy strategy supports %s", t))
}

func (c *AutoProxyCreator) built(p *Proxy, exposed any) any {
	c.log.Debug("proxy created", logger.Fields(
		logger.FieldInstance, p.Name(),
		logger.FieldProxy, p.ID(),
		logger.FieldCount, len(p.advisors),
	))
	return exposed
}
