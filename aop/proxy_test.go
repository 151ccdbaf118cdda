package aop

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/ioc/errors"
)

type ctxKey struct{}

type calculator struct {
	seen context.Context
}

func (c *calculator) Add(ctx context.Context, a, b int) (int, error) {
	c.seen = ctx
	return a + b, nil
}

func (c *calculator) Div(a, b int) (int, error) {
	if b == 0 {
		return 0, stderrors.New("division by zero")
	}
	return a / b, nil
}

func (c *calculator) Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

func (c *calculator) Describe(v any) string {
	if v == nil {
		return "nil"
	}
	return "value"
}

func newTestProxy(target any, advisors ...Advisor) *Proxy {
	return NewProxy("calc", newBoundHolder(target), advisors, nil)
}

func TestInvokeInjectsContext(t *testing.T) {
	calc := &calculator{}
	p := newTestProxy(calc)
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	sum, err := Call[int](ctx, p, "Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)
	assert.Equal(t, "v", calc.seen.Value(ctxKey{}))
}

func TestInvokeSplitsTrailingError(t *testing.T) {
	p := newTestProxy(&calculator{})

	_, err := Call[int](context.Background(), p, "Div", 1, 0)
	assert.EqualError(t, err, "division by zero")

	results, err := p.Invoke(context.Background(), "Div", 6, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{2}, results)
}

func TestInvokeArguments(t *testing.T) {
	ctx := context.Background()
	p := newTestProxy(&calculator{})

	sum, err := Call[int](ctx, p, "Sum", 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, sum)

	desc, err := Call[string](ctx, p, "Describe", nil)
	require.NoError(t, err)
	assert.Equal(t, "nil", desc)

	_, err = p.Invoke(ctx, "Add", 1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = p.Invoke(ctx, "Add", "one", 2)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = p.Invoke(ctx, "Missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = Call[string](ctx, p, "Add", 1, 2)
	assert.Error(t, err, "result type mismatch")
}

type gauge struct{}

func (gauge) Small(b int8) int8 { return b }
func (gauge) Wide(n int64) int64 { return n }
func (gauge) Ratio(f float64) float64 { return f }
func (gauge) Single(f float32) float32 { return f }

type celsius float64

func TestInvokeNumericArgumentsWidenOnly(t *testing.T) {
	ctx := context.Background()
	p := newTestProxy(gauge{})

	n, err := Call[int64](ctx, p, "Wide", int8(-7))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), n)

	n, err = Call[int64](ctx, p, "Wide", uint32(1<<31))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<31), n)

	f, err := Call[float64](ctx, p, "Ratio", int32(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	f, err = Call[float64](ctx, p, "Ratio", celsius(21.5))
	require.NoError(t, err)
	assert.Equal(t, 21.5, f)

	for _, tc := range []struct {
		name   string
		method string
		arg    any
	}{
		{"int64 to int8", "Small", int64(300)},
		{"int to int8", "Small", 1},
		{"uint64 to int64", "Wide", uint64(1 << 63)},
		{"float to int", "Wide", 2.5},
		{"int64 to float64", "Ratio", int64(1<<53 + 1)},
		{"float64 to float32", "Single", 0.1},
		{"string to int8", "Small", "1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Invoke(ctx, tc.method, tc.arg)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestBeforeAdviceCanAbort(t *testing.T) {
	denied := stderrors.New("denied")
	var methods []string
	before := BeforeFunc(func(_ context.Context, method string, _ []any, _ any) error {
		methods = append(methods, method)
		if method == "Div" {
			return denied
		}
		return nil
	})
	p := newTestProxy(&calculator{}, NewAdvisor(before))

	_, err := Call[int](context.Background(), p, "Add", 1, 1)
	require.NoError(t, err)
	_, err = Call[int](context.Background(), p, "Div", 1, 1)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, []string{"Add", "Div"}, methods)
}

func TestAfterReturningAndThrowingAdvice(t *testing.T) {
	var returned [][]any
	var thrown []error
	p := newTestProxy(&calculator{},
		NewAdvisor(AfterReturningFunc(func(_ context.Context, results []any, _ string, _ []any, _ any) error {
			returned = append(returned, results)
			return nil
		})),
		NewAdvisor(AfterThrowingFunc(func(_ context.Context, _ string, _ []any, _ any, err error) {
			thrown = append(thrown, err)
		})),
	)

	_, err := Call[int](context.Background(), p, "Div", 8, 2)
	require.NoError(t, err)
	_, err = Call[int](context.Background(), p, "Div", 8, 0)
	require.Error(t, err)

	assert.Equal(t, [][]any{{4}}, returned)
	require.Len(t, thrown, 1)
	assert.EqualError(t, thrown[0], "division by zero")
}

func TestInterceptorRewritesArguments(t *testing.T) {
	double := InterceptorFunc(func(inv *Invocation) ([]any, error) {
		args := inv.Args()
		out := make([]any, len(args))
		for i, a := range args {
			out[i] = a.(int) * 2
		}
		inv.SetArgs(out)
		return inv.Proceed()
	})
	p := newTestProxy(&calculator{}, NewAdvisor(double))

	sum, err := Call[int](context.Background(), p, "Add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, sum)
}

func TestInterceptorReplacesContext(t *testing.T) {
	calc := &calculator{}
	tag := InterceptorFunc(func(inv *Invocation) ([]any, error) {
		inv.WithContext(context.WithValue(inv.Context(), ctxKey{}, "tagged"))
		return inv.Proceed()
	})
	p := newTestProxy(calc, NewAdvisor(tag))

	_, err := Call[int](context.Background(), p, "Add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "tagged", calc.seen.Value(ctxKey{}))
}

func TestMethodMatcherLimitsAdvice(t *testing.T) {
	var trace []string
	p := newTestProxy(&calculator{},
		NewAdvisor(recorder(&trace, "add"), WithMatchers(Methods("Add"))),
		NewAdvisor(recorder(&trace, "d*"), WithMatchers(MethodPattern("D*"))),
	)
	ctx := context.Background()

	_, err := Call[int](ctx, p, "Add", 1, 2)
	require.NoError(t, err)
	_, err = Call[int](ctx, p, "Div", 4, 2)
	require.NoError(t, err)
	_, err = Call[int](ctx, p, "Sum", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "d*"}, trace)
}

func TestChainCachedPerMethod(t *testing.T) {
	p := newTestProxy(&calculator{}, NewAdvisor(recorder(new([]string), "rec")))

	first, err := p.chain("Add")
	require.NoError(t, err)
	second, err := p.chain("Add")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Same(t, &first[0], &second[0])
}

func TestCanApply(t *testing.T) {
	calcType := reflect.TypeOf(&calculator{})
	tests := []struct {
		name    string
		advisor Advisor
		target  string
		want    bool
	}{
		{"no matchers", NewAdvisor(nil), "calc", true},
		{"name match", NewAdvisor(nil, WithMatchers(Names("ca*"))), "calc", true},
		{"name miss", NewAdvisor(nil, WithMatchers(Names("svc*"))), "calc", false},
		{"type match", NewAdvisor(nil, WithMatchers(OfType[*calculator]())), "calc", true},
		{"interface miss", NewAdvisor(nil, WithMatchers(Implementing[Greeter]())), "calc", false},
		{"method match", NewAdvisor(nil, WithMatchers(Methods("Sum"))), "calc", true},
		{"method miss", NewAdvisor(nil, WithMatchers(Methods("Greet"))), "calc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canApply(tt.advisor, calcType, tt.target))
		})
	}
}

func TestTargetHolderRebindsOnce(t *testing.T) {
	h := NewTargetHolder("a")
	assert.False(t, h.Rebound())
	require.Error(t, h.Rebind(nil))
	require.NoError(t, h.Rebind("b"))
	assert.Equal(t, "b", h.Target())
	assert.True(t, h.Rebound())
	assert.Error(t, h.Rebind("c"))
	assert.Equal(t, "b", h.Target())

	bound := newBoundHolder("x")
	assert.Error(t, bound.Rebind("y"))
}

func TestAdapterRegistryWrap(t *testing.T) {
	r := NewAdapterRegistry()

	a, err := r.Wrap(recorder(new([]string), "rec"))
	require.NoError(t, err)
	assert.Empty(t, a.Matchers())

	advisor := NewAdvisor(recorder(new([]string), "rec"))
	a, err = r.Wrap(advisor)
	require.NoError(t, err)
	assert.Same(t, advisor, a)

	_, err = r.Wrap(42)
	assert.ErrorIs(t, err, errors.ErrUnresolvableInterceptionTarget)
}

type countingAdvice struct{ n int }

type countingAdapter struct{}

func (countingAdapter) SupportsAdvice(advice any) bool {
	_, ok := advice.(*countingAdvice)
	return ok
}

func (countingAdapter) Interceptor(advisor Advisor) Interceptor {
	c := advisor.Advice().(*countingAdvice)
	return InterceptorFunc(func(inv *Invocation) ([]any, error) {
		c.n++
		return inv.Proceed()
	})
}

func TestAdapterRegistryCustomAdvice(t *testing.T) {
	r := NewAdapterRegistry()
	r.Register(countingAdapter{})
	counter := &countingAdvice{}

	advisor, err := r.Wrap(counter)
	require.NoError(t, err)
	p := NewProxy("calc", newBoundHolder(&calculator{}), []Advisor{advisor}, r)

	_, err = Call[int](context.Background(), p, "Add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.n)
}
