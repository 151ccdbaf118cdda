package registry

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/ioc/errors"
)

type disposalLog struct {
	order []string
}

func (l *disposalLog) disposer(name string) Disposer {
	return DisposerFunc(func(context.Context) error {
		l.order = append(l.order, name)
		return nil
	})
}

func createAll(t *testing.T, r *Registry, log *disposalLog, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		_, err := r.GetOrCreate(ctx, name, constant(&widget{}))
		require.NoError(t, err)
		r.RegisterDisposable(name, log.disposer(name))
	}
}

func TestDestroyAllReverseRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	createAll(t, r, log, "a", "b", "c")

	r.DestroyAll(ctx)

	assert.Equal(t, []string{"c", "b", "a"}, log.order)
	for _, name := range []string{"a", "b", "c"} {
		_, ok, err := r.Get(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Zero(t, r.Count())
	assert.Empty(t, r.Names())
	assert.False(t, r.IsDestroying())
}

func TestDestroyAllDependentsFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	// service depends on both collaborators, which were registered after it.
	createAll(t, r, log, "service", "repo", "cache")
	r.RegisterDependency("cache", "service")
	r.RegisterDependency("repo", "service")

	r.DestroyAll(ctx)

	// cache goes first in reverse order, taking its dependent service down
	// before it; repo has no dependents left by then.
	assert.Equal(t, []string{"service", "cache", "repo"}, log.order)
}

func TestDestroyAllHandlesDependencyCycles(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	createAll(t, r, log, "b", "a")
	r.RegisterDependency("a", "b")
	r.RegisterDependency("b", "a")

	r.DestroyAll(ctx)

	assert.ElementsMatch(t, []string{"a", "b"}, log.order)
	assert.Len(t, log.order, 2)
}

func TestContainmentDestroysContainerFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	createAll(t, r, log, "outer", "inner")
	r.RegisterContainment("inner", "outer")

	assert.Equal(t, []string{"outer"}, r.Dependents("inner"))
	assert.Equal(t, []string{"inner"}, r.Dependencies("outer"))

	r.DestroyAll(ctx)
	assert.Equal(t, []string{"outer", "inner"}, log.order)
}

func TestDisposalFailuresDoNotStopTeardown(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	createAll(t, r, log, "first", "second")
	_, err := r.GetOrCreate(ctx, "failing", constant(&widget{}))
	require.NoError(t, err)
	r.RegisterDisposable("failing", DisposerFunc(func(context.Context) error {
		return stderrors.New("close failed")
	}))
	_, err = r.GetOrCreate(ctx, "panicking", constant(&widget{}))
	require.NoError(t, err)
	r.RegisterDisposable("panicking", DisposerFunc(func(context.Context) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() { r.DestroyAll(ctx) })
	assert.Equal(t, []string{"second", "first"}, log.order)
	assert.Zero(t, r.Count())
}

func TestCreationNotAllowedDuringDestruction(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	_, err := r.GetOrCreate(ctx, "x", constant(&widget{}))
	require.NoError(t, err)

	var fromDisposer error
	r.RegisterDisposable("x", DisposerFunc(func(ctx context.Context) error {
		assert.True(t, r.IsDestroying())
		_, fromDisposer = r.GetOrCreate(ctx, "late", constant(&widget{}))
		return nil
	}))

	r.DestroyAll(ctx)

	assert.ErrorIs(t, fromDisposer, errors.ErrCreationNotAllowed)

	_, err = r.GetOrCreate(ctx, "late", constant(&widget{}))
	assert.NoError(t, err, "creation is allowed again after teardown")
}

func TestDestroySingletonCascades(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	log := &disposalLog{}
	createAll(t, r, log, "db", "repo", "other")
	r.RegisterDependency("db", "repo")

	r.DestroySingleton(ctx, "db")

	assert.Equal(t, []string{"repo", "db"}, log.order)
	assert.False(t, r.Contains("db"))
	assert.False(t, r.Contains("repo"))
	assert.True(t, r.Contains("other"))
	assert.Empty(t, r.Dependencies("repo"))
	assert.False(t, r.HasDependents("db"))
}

func TestIsDependentTransitive(t *testing.T) {
	r := newTestRegistry()
	r.RegisterDependency("db", "repo")
	r.RegisterDependency("repo", "service")
	r.RegisterDependency("service", "db")

	assert.True(t, r.IsDependent("db", "repo"))
	assert.True(t, r.IsDependent("db", "service"))
	assert.True(t, r.IsDependent("repo", "db"))
	assert.False(t, r.IsDependent("db", "unknown"))
	assert.False(t, r.IsDependent("unknown", "db"))

	r.RegisterDependency("db", "repo")
	assert.Equal(t, []string{"repo"}, r.Dependents("db"))
	assert.Equal(t, []string{"db"}, r.Dependencies("repo"))
}
