package compiler

import (
	"context"
	"fmt"

	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/treeshaking"
	"golang.org/x/sync/semaphore"
	"lukechampine.com/blake3"
)

// Creates the module for an identifier. This is where parsing happens: the
// module comes back with its dependencies (including their byte spans) and
// the symbol references the usage analyzer needs.
type ModuleFactory interface {
	Create(ctx context.Context, id graph.ModuleIdentifier) (*FactoryResult, error)
}

type FactoryResult struct {
	Module     *graph.Module
	SymbolRefs []treeshaking.SymbolRef
}

type resolvedRequest struct {
	dep    graph.ModuleDependency
	target graph.ModuleIdentifier
	ok     bool
}

type makeResult struct {
	id       graph.ModuleIdentifier
	result   *FactoryResult
	resolved []resolvedRequest
	err      error
}

// Builds every module reachable from the entries. Modules are created and
// their requests resolved on separate goroutines. The results are collected
// here and only added to the module graph once all of them are known, in an
// order that doesn't depend on goroutine scheduling.
func (c *Compiler) make(ctx context.Context, comp *Compilation) error {
	sem := semaphore.NewWeighted(int64(c.options.Concurrency))
	resultChannel := make(chan makeResult)
	results := make(map[graph.ModuleIdentifier]*makeResult)
	remaining := 0
	var firstErr error

	maybeBuildModule := func(id graph.ModuleIdentifier) {
		if _, ok := results[id]; ok {
			return
		}
		results[id] = nil
		remaining++
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				resultChannel <- makeResult{id: id, err: err}
				return
			}
			defer sem.Release(1)
			resultChannel <- c.buildModule(ctx, id)
		}()
	}

	type entry struct {
		dep    *dependency.Entry
		target graph.ModuleIdentifier
		ok     bool
	}
	var entries []entry
	for _, name := range comp.entryNames() {
		request := comp.entryRequests[name]
		dep := dependency.NewEntry(name, request)
		target, ok, err := c.resolver.Resolve(ctx, "", request)
		if err != nil {
			return fmt.Errorf("failed to resolve entry %q: %w", name, err)
		}
		entries = append(entries, entry{dep: dep, target: target, ok: ok})
	}

	// Nothing is started before every entry resolved, so an error above
	// can't strand a goroutine on "resultChannel"
	for _, e := range entries {
		if e.ok {
			maybeBuildModule(e.target)
		}
	}

	for remaining > 0 {
		result := <-resultChannel
		remaining--
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		results[result.id] = &result

		// Keep draining after a failure but don't start anything new
		if firstErr != nil {
			continue
		}
		for _, r := range result.resolved {
			if r.ok {
				maybeBuildModule(r.target)
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	mg := comp.ModuleGraph
	for _, e := range entries {
		mg.AddDependency(e.dep)
		if !e.ok {
			comp.Log.AddError(nil, logger.Range{}, fmt.Sprintf("Could not resolve entry %q: %q", e.dep.Name(), e.dep.Request()))
			continue
		}
		mg.SetResolvedModule("", e.dep, e.target)
		comp.entries[e.dep.Name()] = e.target
	}

	// Depth-first from the entries in dependency order
	added := make(map[graph.ModuleIdentifier]bool)
	var visit func(id graph.ModuleIdentifier)
	visit = func(id graph.ModuleIdentifier) {
		if added[id] {
			return
		}
		added[id] = true
		result := results[id]
		m := result.result.Module
		mg.AddModule(m)
		comp.SymbolRefs = append(comp.SymbolRefs, result.result.SymbolRefs...)
		for _, r := range result.resolved {
			if !r.ok {
				rng := depRange(r.dep)
				var notes []logger.MsgData
				if rng.Len > 0 {
					notes = append(notes, logger.MsgData{Text: fmt.Sprintf(
						"%q throws \"Cannot find module\" when it runs", m.Source.TextForRange(rng))})
				}
				comp.Log.AddErrorWithNotes(&m.Source, rng, fmt.Sprintf("Could not resolve %q", r.dep.Request()), notes)
				continue
			}
			mg.SetResolvedModule(m.Identifier, r.dep, r.target)
			visit(r.target)
		}
	}
	for _, e := range entries {
		if e.ok {
			visit(e.target)
		}
	}

	c.log.Debug().
		Int("modules", mg.ModuleCount()).
		Int("entries", len(comp.entries)).
		Msg("Module graph built")
	return nil
}

// Runs on its own goroutine. This must not touch the compilation.
func (c *Compiler) buildModule(ctx context.Context, id graph.ModuleIdentifier) makeResult {
	created, err := c.factory.Create(ctx, id)
	if err != nil {
		return makeResult{id: id, err: fmt.Errorf("failed to build module %q: %w", id, err)}
	}
	m := created.Module
	if m == nil {
		return makeResult{id: id, err: fmt.Errorf("failed to build module %q: the factory returned no module", id)}
	}
	if m.Identifier == "" {
		m.Identifier = id
	} else if m.Identifier != id {
		return makeResult{id: id, err: fmt.Errorf("failed to build module %q: the factory returned module %q", id, m.Identifier)}
	}
	if m.Source.KeyPath == "" {
		m.Source.KeyPath = string(id)
	}
	if m.Source.PrettyPath == "" {
		m.Source.PrettyPath = string(id)
	}
	if c.options.SideEffects {
		m.SideEffectFree = m.SideEffectFree || c.options.IsSideEffectFree(string(id))
	} else {
		m.SideEffectFree = false
	}
	if m.BuildHash == "" {
		m.BuildHash = moduleBuildHash(m)
	}

	var resolved []resolvedRequest
	for _, dep := range m.Dependencies {
		md, ok := dep.(graph.ModuleDependency)
		if !ok {
			continue
		}
		target, ok, err := c.resolver.Resolve(ctx, id, md.Request())
		if err != nil {
			return makeResult{id: id, err: fmt.Errorf("failed to resolve %q from %q: %w", md.Request(), id, err)}
		}
		resolved = append(resolved, resolvedRequest{dep: md, target: target, ok: ok})
	}
	return makeResult{id: id, result: created, resolved: resolved}
}

// Factories that don't know better get a hash of everything code generation
// reads from the module itself
func moduleBuildHash(m *graph.Module) string {
	hasher := blake3.New(32, nil)
	hasher.Write([]byte(m.Source.Contents))
	for _, dep := range m.Dependencies {
		fmt.Fprintf(hasher, "\x00%s %s", dep.ID(), dep.DebugName())
		if span, ok := dep.Span(); ok {
			fmt.Fprintf(hasher, " %d:%d", span.Start, span.End)
		}
		if md, ok := dep.(graph.ModuleDependency); ok {
			fmt.Fprintf(hasher, " %q", md.Request())
		}
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

func depRange(dep graph.Dependency) logger.Range {
	if span, ok := dep.Span(); ok {
		return logger.Range{Loc: logger.Loc{Start: int32(span.Start)}, Len: int32(span.End - span.Start)}
	}
	return logger.Range{}
}
