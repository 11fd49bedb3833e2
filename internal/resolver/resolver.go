package resolver

import (
	"context"
	"path"
	"sync/atomic"

	"github.com/evanw/packcore/internal/graph"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Maps a request string found in a module to the identifier of the module
// it refers to. "ok" is false if nothing matches, which is reported as a
// diagnostic and not as an error. Errors are for failures of the resolver
// itself.
type Resolver interface {
	Resolve(ctx context.Context, importer graph.ModuleIdentifier, request string) (resolved graph.ModuleIdentifier, ok bool, err error)
}

// Adapts a plain function to the Resolver interface
type ResolverFunc func(ctx context.Context, importer graph.ModuleIdentifier, request string) (graph.ModuleIdentifier, bool, error)

func (f ResolverFunc) Resolve(ctx context.Context, importer graph.ModuleIdentifier, request string) (graph.ModuleIdentifier, bool, error) {
	return f(ctx, importer, request)
}

// Results only depend on the importer's directory, so sibling modules share
// cache entries
type cacheKey struct {
	dir     string
	request string
}

type cacheEntry struct {
	resolved graph.ModuleIdentifier
	ok       bool
}

// Wraps a resolver with a bounded cache. The cache is only valid during one
// build because files may appear or disappear between builds. The compiler
// clears it when a build starts.
type Factory struct {
	resolver Resolver
	cache    *lru.Cache[cacheKey, cacheEntry]
	hits     atomic.Uint64
	misses   atomic.Uint64
}

func NewFactory(resolver Resolver, size int) (*Factory, error) {
	cache, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Factory{resolver: resolver, cache: cache}, nil
}

func (f *Factory) Resolve(ctx context.Context, importer graph.ModuleIdentifier, request string) (graph.ModuleIdentifier, bool, error) {
	key := cacheKey{dir: path.Dir(string(importer)), request: request}
	if entry, ok := f.cache.Get(key); ok {
		f.hits.Add(1)
		return entry.resolved, entry.ok, nil
	}
	f.misses.Add(1)

	resolved, ok, err := f.resolver.Resolve(ctx, importer, request)
	if err != nil {
		// Failures aren't cached so that a retry can succeed
		return "", false, err
	}
	f.cache.Add(key, cacheEntry{resolved: resolved, ok: ok})
	return resolved, ok, nil
}

func (f *Factory) ClearCache() {
	f.cache.Purge()
}

func (f *Factory) Len() int {
	return f.cache.Len()
}

// Cache hits and misses since the factory was created
func (f *Factory) Stats() (hits uint64, misses uint64) {
	return f.hits.Load(), f.misses.Load()
}
