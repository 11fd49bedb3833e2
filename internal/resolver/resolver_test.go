package resolver_test

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	fail  bool
}

func (r *countingResolver) Resolve(_ context.Context, importer graph.ModuleIdentifier, request string) (graph.ModuleIdentifier, bool, error) {
	r.calls++
	if r.fail {
		return "", false, errors.New("disk on fire")
	}
	if request == "./missing.js" {
		return "", false, nil
	}
	return graph.ModuleIdentifier(path.Join(path.Dir(string(importer)), request)), true, nil
}

func TestFactoryCachesPerDirectory(t *testing.T) {
	inner := &countingResolver{}
	factory, err := resolver.NewFactory(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	resolved, ok, err := factory.Resolve(ctx, "src/a.js", "./util.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.ModuleIdentifier("src/util.js"), resolved)

	// A sibling of the importer hits the same entry
	resolved, ok, err = factory.Resolve(ctx, "src/b.js", "./util.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.ModuleIdentifier("src/util.js"), resolved)
	assert.Equal(t, 1, inner.calls)

	// Misses are cached too
	_, ok, err = factory.Resolve(ctx, "src/a.js", "./missing.js")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = factory.Resolve(ctx, "src/a.js", "./missing.js")
	assert.False(t, ok)
	assert.Equal(t, 2, inner.calls)

	hits, misses := factory.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)

	factory.ClearCache()
	assert.Equal(t, 0, factory.Len())
	_, _, _ = factory.Resolve(ctx, "src/a.js", "./util.js")
	assert.Equal(t, 3, inner.calls)
}

func TestFactoryDoesNotCacheErrors(t *testing.T) {
	inner := &countingResolver{fail: true}
	factory, err := resolver.NewFactory(inner, 16)
	require.NoError(t, err)

	_, _, err = factory.Resolve(context.Background(), "a.js", "./b.js")
	require.Error(t, err)
	assert.Equal(t, 0, factory.Len())

	inner.fail = false
	resolved, ok, err := factory.Resolve(context.Background(), "a.js", "./b.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.ModuleIdentifier("b.js"), resolved)
}

func TestFactoryEvictsOldEntries(t *testing.T) {
	inner := &countingResolver{}
	factory, err := resolver.NewFactory(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()
	for _, request := range []string{"./a.js", "./b.js", "./c.js"} {
		_, _, err := factory.Resolve(ctx, "index.js", request)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, factory.Len())

	_, err = resolver.NewFactory(inner, 0)
	assert.Error(t, err)
}
