package compiler

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/evanw/packcore/internal/ast"
	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/helpers"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"
)

// A panic while generating code. This is always a bug, either in a
// dependency template or in whatever created the dependencies.
type InternalError struct {
	Module graph.ModuleIdentifier
	Value  interface{}
	Stack  string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error while generating %q: %v\n%s", e.Module, e.Value, e.Stack)
}

// Typed panic values such as "*template.OverlapError" stay reachable
// through "errors.As"
func (e *InternalError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func recoverInternalError(module graph.ModuleIdentifier, err *error) {
	if r := recover(); r != nil {
		*err = &InternalError{Module: module, Value: r, Stack: helpers.PrettyPrintedStack()}
	}
}

func (c *Compiler) seal(ctx context.Context, comp *Compilation) error {
	c.assignModuleIDs(comp)
	c.buildChunks(comp)
	if err := c.codeGeneration(ctx, comp); err != nil {
		return err
	}
	c.createChunkAssets(comp)
	return nil
}

// Module ids are the module identifiers. They stay the same when unrelated
// modules are added or removed, which keeps cached code valid.
func (c *Compiler) assignModuleIDs(comp *Compilation) {
	for _, id := range comp.IncludedModules() {
		comp.ChunkGraph.SetModuleID(id, string(id))
	}
}

type workerRef struct {
	dep    graph.DependencyID
	target graph.ModuleIdentifier
}

// One chunk per entry, plus one chunk per distinct worker module. A worker
// chunk may start more workers, so chunks are processed as a queue.
func (c *Compiler) buildChunks(comp *Compilation) {
	cg := comp.ChunkGraph
	usedNames := make(map[string]bool)
	workerChunks := make(map[graph.ModuleIdentifier]graph.ChunkUkey)
	var queue []graph.ChunkUkey

	for _, name := range comp.entryNames() {
		entry, ok := comp.entries[name]
		if !ok || !comp.included[entry] {
			continue
		}
		usedNames[name] = true
		queue = append(queue, c.addChunk(comp, &graph.Chunk{
			Name:        name,
			Filename:    name + ".js",
			Runtime:     graph.MakeRuntimeSpec(name),
			EntryModule: entry,
		}))
	}

	for i := 0; i < len(queue); i++ {
		chunk := cg.Chunk(queue[i])
		for _, worker := range fillChunk(comp, chunk) {
			ukey, ok := workerChunks[worker.target]
			if !ok {
				name := uniqueChunkName(workerChunkName(worker.target), usedNames)
				ukey = c.addChunk(comp, &graph.Chunk{
					Name:        name,
					Filename:    name + ".js",
					Runtime:     graph.MakeRuntimeSpec(runtime.WorkerRuntimePrefix + name),
					EntryModule: worker.target,
					IsWorker:    true,
				})
				workerChunks[worker.target] = ukey
				queue = append(queue, ukey)
			}
			cg.ConnectWorkerChunk(worker.dep, ukey)
		}
	}
}

func (c *Compiler) addChunk(comp *Compilation, chunk *graph.Chunk) graph.ChunkUkey {
	for _, name := range chunk.Runtime {
		comp.ChunkGraph.SetRuntimeID(name, chunk.Name)
	}
	return comp.ChunkGraph.AddChunk(chunk)
}

// Adds every included module reachable from the chunk's entry. Workers
// are entries of their own chunk and are returned instead of followed.
func fillChunk(comp *Compilation, chunk *graph.Chunk) []workerRef {
	mg := comp.ModuleGraph
	seen := make(map[graph.ModuleIdentifier]bool)
	var workers []workerRef

	var visit func(id graph.ModuleIdentifier)
	visit = func(id graph.ModuleIdentifier) {
		if seen[id] || !comp.included[id] {
			return
		}
		seen[id] = true
		chunk.Modules = append(chunk.Modules, id)
		for _, conn := range mg.OutgoingConnections(id) {
			if !comp.included[conn.Module] {
				continue
			}
			if dep, ok := mg.Dependency(conn.Dependency); ok && dep.Type() == graph.TypeNewWorker {
				workers = append(workers, workerRef{dep: conn.Dependency, target: conn.Module})
				continue
			}
			if comp.Analysis != nil && !conn.ActiveState(chunk.Runtime, mg).IsActive() {
				continue
			}
			visit(conn.Module)
		}
	}
	visit(chunk.EntryModule)

	sort.Slice(chunk.Modules, func(i, j int) bool { return chunk.Modules[i] < chunk.Modules[j] })
	return workers
}

func workerChunkName(target graph.ModuleIdentifier) string {
	if name := ast.GenerateNonUniqueNameFromPath(string(target)); name != "" {
		return name
	}
	return "worker"
}

func uniqueChunkName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		candidate = name + "_" + strconv.Itoa(i)
	}
	used[candidate] = true
	return candidate
}

// Generates every module that ended up in a chunk. Modules are independent
// of each other here since the graphs are read-only, so this runs on as many
// goroutines as the options allow.
func (c *Compiler) codeGeneration(ctx context.Context, comp *Compilation) error {
	cg := comp.ChunkGraph
	runtimes := make(map[graph.ModuleIdentifier][]string)
	for _, ukey := range cg.Chunks() {
		chunk := cg.Chunk(ukey)
		for _, id := range chunk.Modules {
			runtimes[id] = append(runtimes[id], chunk.Runtime...)
		}
	}
	ids := make([]graph.ModuleIdentifier, 0, len(runtimes))
	for id := range runtimes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]cache.CodeGenResult, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.options.Concurrency)
	for i, id := range ids {
		i, id := i, id
		m, _ := comp.ModuleGraph.Module(id)
		spec := graph.MakeRuntimeSpec(runtimes[id]...)
		group.Go(func() (err error) {
			defer recoverInternalError(id, &err)
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = c.generateModule(comp, m, spec)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, id := range ids {
		comp.CodeGenResults[id] = results[i]
	}
	return nil
}

func (c *Compiler) generateModule(comp *Compilation, m *graph.Module, spec graph.RuntimeSpec) cache.CodeGenResult {
	key := codeGenCacheKey(comp, m, spec)
	if result, ok := c.cache.GetCodeGen(key); ok {
		c.metrics.codeGenLookup(true)
		return result
	}
	c.metrics.codeGenLookup(false)

	ctx := &template.Context{
		ModuleGraph: comp.ModuleGraph,
		ChunkGraph:  comp.ChunkGraph,
		Module:      m,
		Runtime:     spec,
		TreeShaking: comp.Analysis != nil,
	}
	result := cache.CodeGenResult{
		Source:              template.Generate(ctx),
		RuntimeRequirements: ctx.RuntimeRequirements,
	}
	c.cache.StoreCodeGen(key, result)
	return result
}

// Everything generated code reads: the module itself, its own export usage,
// and the ids, export usage and worker chunks of what it references
func codeGenCacheKey(comp *Compilation, m *graph.Module, spec graph.RuntimeSpec) string {
	mg := comp.ModuleGraph
	cg := comp.ChunkGraph
	hasher := blake3.New(32, nil)
	fmt.Fprintf(hasher, "%s\x00%s\x00%t\x00", m.BuildHash, spec, comp.Analysis != nil)
	hasher.Write([]byte(mg.UsageSignature(m.Exports())))
	for _, conn := range mg.OutgoingConnections(m.Identifier) {
		fmt.Fprintf(hasher, "\x00%s>", conn.Dependency)
		if id, ok := cg.ModuleID(conn.Module); ok {
			fmt.Fprintf(hasher, "%q ", id)
			if target, ok := mg.Module(conn.Module); ok {
				hasher.Write([]byte(mg.UsageSignature(target.Exports())))
			}
		}
		if ukey, ok := cg.WorkerChunk(conn.Dependency); ok {
			fmt.Fprintf(hasher, " worker=%q", cg.Chunk(ukey).Filename)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Synthesizes the runtime modules each chunk needs and renders the chunk
func (c *Compiler) createChunkAssets(comp *Compilation) {
	cg := comp.ChunkGraph
	for _, ukey := range cg.Chunks() {
		chunk := cg.Chunk(ukey)

		// The bootstrap itself defines the require function
		globals := runtime.Require
		for _, id := range chunk.Modules {
			globals.Insert(comp.CodeGenResults[id].RuntimeRequirements)
		}
		globals = globals.WithDependencies()

		modules := runtime.ModulesForGlobals(globals, comp.Options.Output.PublicPath)
		for _, module := range modules {
			module.Attach(ukey)
		}
		comp.RuntimeModules[ukey] = modules

		comp.EmitAsset(chunk.Filename, Asset{
			Source: renderChunk(comp, chunk, globals, modules),
			Info:   AssetInfo{ChunkName: chunk.Name},
		})
	}
}
