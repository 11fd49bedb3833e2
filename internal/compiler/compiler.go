package compiler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/config"
	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/fs"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/helpers"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/resolver"
	"github.com/evanw/packcore/internal/treeshaking"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Receives incidental information about the compiler for debugging tools.
// Nothing in the build depends on it.
type DebugCollector interface {
	SetBuildContext(path string)
}

type Params struct {
	Options  config.Options
	Factory  ModuleFactory
	Resolver resolver.Resolver
	OutputFS fs.OutputFS
	Plugins  []Plugin

	// Optional. A fresh cache is created if this is nil.
	Cache *cache.CacheSet

	// Optional. Defaults to a logger that discards everything.
	Logger *zerolog.Logger

	// Optional
	Metrics *Metrics
	Tracer  trace.Tracer
	Debug   DebugCollector
}

var ErrInvalidOptions = errors.New("invalid options")

type Compiler struct {
	options  config.Options
	factory  ModuleFactory
	resolver *resolver.Factory
	outputFS fs.OutputFS
	plugins  pluginDriver
	cache    *cache.CacheSet
	log      zerolog.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	workerSyntax dependency.WorkerSyntaxList

	// Builds never overlap
	mutex sync.Mutex

	// Filename => version of the most recent emission. This is the only build
	// output that survives into the next build.
	emittedAssetVersions map[string]string
}

func New(params Params) (*Compiler, error) {
	options := params.Options
	options.Normalize()

	if params.Factory == nil {
		return nil, errors.New("a module factory is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("a resolver is required")
	}
	if params.OutputFS == nil {
		return nil, errors.New("an output file system is required")
	}

	factory, err := resolver.NewFactory(params.Resolver, options.ResolverCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	workerSyntax, err := dependency.ParseWorkerSyntax(options.WorkerSyntax)
	if err != nil {
		return nil, fmt.Errorf("invalid worker syntax: %w", err)
	}

	c := &Compiler{
		options:              options,
		factory:              params.Factory,
		resolver:             factory,
		outputFS:             params.OutputFS,
		plugins:              pluginDriver{plugins: params.Plugins, metrics: params.Metrics},
		cache:                params.Cache,
		log:                  zerolog.Nop(),
		metrics:              params.Metrics,
		tracer:               params.Tracer,
		workerSyntax:         workerSyntax,
		emittedAssetVersions: make(map[string]string),
	}
	if c.cache == nil {
		c.cache = cache.MakeCacheSet()
	}
	if params.Logger != nil {
		c.log = params.Logger.With().Str("component", "compiler").Logger()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("github.com/evanw/packcore/internal/compiler")
	}
	if params.Debug != nil {
		params.Debug.SetBuildContext(options.Context)
	}
	return c, nil
}

func (c *Compiler) Options() *config.Options {
	return &c.options
}

// A copy of the version table of the most recent emission
func (c *Compiler) EmittedAssetVersions() map[string]string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	versions := make(map[string]string, len(c.emittedAssetVersions))
	for filename, version := range c.emittedAssetVersions {
		versions[filename] = version
	}
	return versions
}

// Runs one complete build. The returned stats are non-nil even if the build
// failed, and carry the diagnostics collected up to the failure.
//
// A failing build never touches files written by earlier builds unless the
// failure happened while writing them.
func (c *Compiler) Build(ctx context.Context) (*Stats, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	start := time.Now()
	stats, err := c.build(ctx)
	c.metrics.buildFinished(start, err)
	return stats, err
}

// Same as "Build"
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	return c.Build(ctx)
}

func (c *Compiler) build(ctx context.Context) (*Stats, error) {
	comp := newCompilation(&c.options, c.workerSyntax)
	ctx, span := c.tracer.Start(ctx, "packcore.build", trace.WithAttributes(
		attribute.String("compilation.id", comp.ID.String()),
	))
	defer span.End()

	log := c.log.With().Str("compilation", comp.ID.String()).Logger()
	log.Info().Int("entries", len(c.options.Entry)).Msg("Build started")

	// Resolution results may change between builds, and the cache is only
	// busy until the module graph is final
	c.resolver.ClearCache()
	c.cache.EndIdle()
	defer c.cache.BeginIdle()

	timer := &helpers.Timer{}
	err := c.runPhases(ctx, comp, timer)
	timer.Log(log)

	stats := comp.stats()
	for _, msg := range stats.Errors {
		logger.TraceMsg(log, msg)
	}
	for _, msg := range stats.Warnings {
		logger.TraceMsg(log, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Build failed")
		return stats, err
	}

	if err := c.plugins.done(ctx, stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}
	log.Info().
		Int("errors", len(stats.Errors)).
		Int("warnings", len(stats.Warnings)).
		Int("emitted", len(stats.EmittedAssets)).
		Int("skipped", len(stats.SkippedAssets)).
		Msg("Build finished")
	return stats, nil
}

type phase struct {
	name string
	run  func(ctx context.Context) error
}

func (c *Compiler) runPhases(ctx context.Context, comp *Compilation, timer *helpers.Timer) error {
	comp.Options.Validate(comp.Log)
	if comp.Log.HasErrors() {
		return ErrInvalidOptions
	}

	phases := []phase{
		{"beforeCompile", func(ctx context.Context) error {
			return c.plugins.beforeCompile(ctx)
		}},
		{"thisCompilation", func(ctx context.Context) error {
			return c.plugins.thisCompilation(ctx, comp)
		}},
		{"compilation", func(ctx context.Context) error {
			return c.plugins.compilation(ctx, comp)
		}},
		{"make", func(ctx context.Context) error {
			if err := c.plugins.make(ctx, comp); err != nil {
				return err
			}
			return c.make(ctx, comp)
		}},
		{"finishMake", func(ctx context.Context) error {
			if err := c.plugins.finishMake(ctx, comp); err != nil {
				return err
			}
			c.finishMake(comp)
			return nil
		}},
		{"optimizeDependencies", func(ctx context.Context) error {
			return c.optimizeDependencies(ctx, comp)
		}},
		{"seal", func(ctx context.Context) error {
			if err := c.plugins.seal(ctx, comp); err != nil {
				return err
			}
			return c.seal(ctx, comp)
		}},
		{"afterCompile", func(ctx context.Context) error {
			return c.plugins.afterCompile(ctx, comp)
		}},
	}
	for _, p := range phases {
		if err := c.runPhase(ctx, timer, p); err != nil {
			return err
		}
	}

	shouldEmit, err := c.plugins.shouldEmit(ctx, comp)
	if err != nil {
		return err
	}
	if !shouldEmit {
		c.log.Debug().Msg("Emission skipped by a plugin")
		return nil
	}

	if err := c.runPhase(ctx, timer, phase{"emit", func(ctx context.Context) error {
		return c.emitAssets(ctx, comp)
	}}); err != nil {
		return err
	}
	return c.runPhase(ctx, timer, phase{"afterEmit", func(ctx context.Context) error {
		return c.plugins.afterEmit(ctx, comp)
	}})
}

func (c *Compiler) runPhase(ctx context.Context, timer *helpers.Timer, p phase) error {
	ctx, span := c.tracer.Start(ctx, "packcore."+p.name)
	defer span.End()

	start := time.Now()
	timer.Begin(p.name)
	err := p.run(ctx)
	timer.End(p.name)
	c.metrics.phaseFinished(p.name, start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// The module graph is final after this, so exports can be flagged and the
// cache goes idle
func (c *Compiler) finishMake(comp *Compilation) {
	treeshaking.FlagExports(comp.Log, comp.ModuleGraph)
	c.cache.BeginIdle()

	// Everything is included until the analysis says otherwise
	for _, m := range comp.ModuleGraph.Modules() {
		comp.included[m.Identifier] = true
	}
}

func (c *Compiler) optimizeDependencies(ctx context.Context, comp *Compilation) error {
	if !c.options.IsTreeShakingEnabled() {
		c.metrics.graphBuilt(comp.ModuleGraph.ModuleCount(), 0)
		return nil
	}
	if err := c.plugins.optimizeDependencies(ctx, comp); err != nil {
		return err
	}

	names := comp.entryNames()
	entries := make([]graph.ModuleIdentifier, 0, len(names))
	for _, name := range names {
		if id, ok := comp.entries[name]; ok {
			entries = append(entries, id)
		}
	}
	result := treeshaking.Analyze(comp.Log, comp.ModuleGraph, treeshaking.Input{
		Entries:      entries,
		SymbolRefs:   comp.SymbolRefs,
		Runtime:      graph.MakeRuntimeSpec(names...),
		PruneModules: c.options.IsModuleInclusionPruned(),
	})
	if c.options.MangleExports {
		treeshaking.MangleExports(comp.ModuleGraph, result)
	}
	comp.Analysis = result
	comp.included = result.IncludeModuleIDs

	for _, id := range sortedBailouts(result.BailoutModules) {
		c.log.Debug().
			Str("module", string(id)).
			Str("reason", result.BailoutModules[id].String()).
			Msg("Module bailed out of tree shaking")
	}
	c.metrics.graphBuilt(comp.ModuleGraph.ModuleCount(), len(result.BailoutModules))
	return nil
}

func sortedBailouts(bailouts map[graph.ModuleIdentifier]treeshaking.BailoutFlag) []graph.ModuleIdentifier {
	ids := make([]graph.ModuleIdentifier, 0, len(bailouts))
	for id := range bailouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
