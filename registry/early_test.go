package registry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/ioc/errors"
)

type nodeA struct {
	b         *nodeB
	populated bool
}

type nodeB struct {
	a any
}

// wrapper stands in for a proxy produced by an exposure hook.
type wrapper struct {
	target *nodeA
}

// cycle wires factories for a -> b -> a the way a population layer does:
// expose a early, populate it with b, and return the early reference when
// one was handed out.
func cycle(r *Registry, hooks ...EarlyExposureHook) (Factory, Factory) {
	var factoryA, factoryB Factory
	factoryB = func(ctx context.Context) (any, error) {
		b := &nodeB{}
		a, ok, err := r.Get(ctx, "a")
		if err != nil {
			return nil, err
		}
		if !ok {
			a, err = r.GetOrCreate(ctx, "a", factoryA)
			if err != nil {
				return nil, err
			}
		}
		b.a = a
		return b, nil
	}
	factoryA = func(ctx context.Context) (any, error) {
		a := &nodeA{}
		if err := ExposeEarly(ctx, r, "a", a, hooks...); err != nil {
			return nil, err
		}
		b, err := r.GetOrCreate(ctx, "b", factoryB)
		if err != nil {
			return nil, err
		}
		a.b = b.(*nodeB)
		a.populated = true
		if early, ok := r.EarlyValue(ctx, "a"); ok {
			return early, nil
		}
		return a, nil
	}
	return factoryA, factoryB
}

func TestCycleResolvesToRawInstance(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	factoryA, factoryB := cycle(r)

	a, err := r.GetOrCreate(ctx, "a", factoryA)
	require.NoError(t, err)
	b, err := r.GetOrCreate(ctx, "b", factoryB)
	require.NoError(t, err)

	rawA := a.(*nodeA)
	assert.True(t, rawA.populated)
	assert.Same(t, b, rawA.b)
	assert.Same(t, rawA, b.(*nodeB).a, "b holds the instance a finished populating")

	gotA, ok, err := r.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, gotA, b.(*nodeB).a)

	_, early := r.EarlyValue(ctx, "a")
	assert.False(t, early, "finished replaces the early slot")
	assert.Equal(t, []string{"b", "a"}, r.Names())
}

func TestCycleConvergesOnSubstitutedReference(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	var hookCalls int
	hook := HookFunc(func(_ context.Context, raw any, name string) (any, error) {
		hookCalls++
		return &wrapper{target: raw.(*nodeA)}, nil
	})
	factoryA, _ := cycle(r, hook)

	a, err := r.GetOrCreate(ctx, "a", factoryA)
	require.NoError(t, err)

	w, ok := a.(*wrapper)
	require.True(t, ok, "the substituted value is the final value")
	assert.True(t, w.target.populated)

	b, ok, err := r.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, w, b.(*nodeB).a)
	assert.Equal(t, 1, hookCalls)
}

func TestExposeEarlyChainsHooks(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	var seen []any
	first := HookFunc(func(_ context.Context, raw any, _ string) (any, error) {
		seen = append(seen, raw)
		return "first", nil
	})
	second := HookFunc(func(_ context.Context, raw any, _ string) (any, error) {
		seen = append(seen, raw)
		return "second", nil
	})

	_, err := r.GetOrCreate(ctx, "x", func(ctx context.Context) (any, error) {
		require.NoError(t, ExposeEarly(ctx, r, "x", "raw", first, second))
		v, ok, err := r.ResolveEarly(ctx, "x")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", v)
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"raw", "first"}, seen)
}

func TestResolveEarlyMaterializesOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	var calls int
	_, err := r.GetOrCreate(ctx, "x", func(ctx context.Context) (any, error) {
		require.NoError(t, r.RegisterEarlyFactory(ctx, "x", func(context.Context) (any, error) {
			calls++
			return &widget{id: calls}, nil
		}))

		first, ok, err := r.ResolveEarly(ctx, "x")
		require.NoError(t, err)
		require.True(t, ok)
		second, ok, err := r.ResolveEarly(ctx, "x")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, first, second)

		// Registering again after materialization does not reset the slot.
		require.NoError(t, r.RegisterEarlyFactory(ctx, "x", func(context.Context) (any, error) {
			return &widget{id: 99}, nil
		}))
		third, _, _ := r.ResolveEarly(ctx, "x")
		assert.Same(t, first, third)
		return first, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRegisterEarlyFactoryLastWriterWins(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	_, err := r.GetOrCreate(ctx, "x", func(ctx context.Context) (any, error) {
		require.NoError(t, r.RegisterEarlyFactory(ctx, "x", func(context.Context) (any, error) { return "old", nil }))
		require.NoError(t, r.RegisterEarlyFactory(ctx, "x", func(context.Context) (any, error) { return "new", nil }))
		v, _, err := r.ResolveEarly(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "new", v)
		return v, nil
	})
	require.NoError(t, err)
}

func TestRegisterEarlyFactoryRequiresCreation(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	err := r.RegisterEarlyFactory(ctx, "idle", func(context.Context) (any, error) { return 1, nil })
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = r.RegisterEarlyFactory(ctx, "idle", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestResolveEarlyAbsentOutsideCreation(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	v, ok, err := r.ResolveEarly(ctx, "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	w, err := r.GetOrCreate(ctx, "done", constant(&widget{}))
	require.NoError(t, err)
	v, ok, err = r.ResolveEarly(ctx, "done")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, w, v)
}

func TestGetInCreationWithoutEarlyFactoryIsAbsent(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	_, err := r.GetOrCreate(ctx, "x", func(ctx context.Context) (any, error) {
		_, ok, err := r.Get(ctx, "x")
		require.NoError(t, err)
		assert.False(t, ok)
		return &widget{}, nil
	})
	require.NoError(t, err)
}

func TestFailingEarlyFactoryIsConsumed(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	boom := stderrors.New("proxy failed")

	_, err := r.GetOrCreate(ctx, "x", func(ctx context.Context) (any, error) {
		require.NoError(t, ExposeEarly(ctx, r, "x", &widget{}, HookFunc(func(context.Context, any, string) (any, error) {
			return nil, boom
		})))
		_, _, err := r.ResolveEarly(ctx, "x")
		assert.ErrorIs(t, err, boom)

		_, ok, err := r.ResolveEarly(ctx, "x")
		assert.NoError(t, err)
		assert.False(t, ok)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, r.Contains("x"))
}

func TestEarlyReferenceOrphanedAfterFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	var handedOut any
	_, err := r.GetOrCreate(ctx, "a", func(ctx context.Context) (any, error) {
		raw := &nodeA{}
		require.NoError(t, ExposeEarly(ctx, r, "a", raw))
		_, err := r.GetOrCreate(ctx, "b", func(ctx context.Context) (any, error) {
			handedOut, _, _ = r.Get(ctx, "a")
			return &nodeB{a: handedOut}, nil
		})
		require.NoError(t, err)
		return nil, stderrors.New("a failed after b finished")
	})
	require.Error(t, err)

	// b keeps the early reference of the failed attempt.
	b, ok, _ := r.Get(ctx, "b")
	require.True(t, ok)
	assert.Same(t, handedOut, b.(*nodeB).a)

	// The registry itself does not.
	assert.False(t, r.Contains("a"))
	_, ok, err = r.ResolveEarly(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	a, err := r.GetOrCreate(ctx, "a", constant(&nodeA{}))
	require.NoError(t, err)
	assert.NotSame(t, handedOut, a)
}

func TestEarlyReferenceNotVisibleToOtherGoroutines(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	final := &wrapper{}

	exposed := make(chan struct{})
	proceed := make(chan struct{})
	created := make(chan error, 1)
	go func() {
		_, err := r.GetOrCreate(ctx, "a", func(ctx context.Context) (any, error) {
			raw := &nodeA{}
			if err := ExposeEarly(ctx, r, "a", raw); err != nil {
				return nil, err
			}
			if _, _, err := r.ResolveEarly(ctx, "a"); err != nil {
				return nil, err
			}
			close(exposed)
			<-proceed
			final.target = raw
			return final, nil
		})
		created <- err
	}()
	<-exposed

	type result struct {
		v   any
		ok  bool
		err error
	}
	got := make(chan result, 1)
	go func() {
		v, ok, err := r.Get(ctx, "a")
		got <- result{v, ok, err}
	}()

	select {
	case res := <-got:
		t.Fatalf("Get returned %v before the creation finished", res.v)
	case <-time.After(50 * time.Millisecond):
	}
	_, early := r.EarlyValue(ctx, "a")
	assert.False(t, early, "early reference is scoped to the creating context")

	close(proceed)
	require.NoError(t, <-created)

	select {
	case res := <-got:
		require.NoError(t, res.err)
		require.True(t, res.ok)
		assert.Same(t, final, res.v)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after the creation finished")
	}
}
