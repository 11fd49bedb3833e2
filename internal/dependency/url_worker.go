package dependency

import (
	"fmt"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// The first argument of "new URL('./file', import.meta.url)". The span
// covers both arguments, which are replaced by the asset module's URL and
// the base URI.
type URL struct {
	base
	request string
}

func NewURL(id graph.DependencyID, span graph.Span, request string) *URL {
	return &URL{base: newBaseWithSpan(id, span), request: request}
}

func (d *URL) Category() graph.DependencyCategory   { return graph.CategoryURL }
func (d *URL) Type() graph.DependencyType           { return graph.TypeNewURL }
func (d *URL) DebugName() string                    { return "URLDependency" }
func (d *URL) Request() string                      { return d.request }
func (d *URL) Condition() graph.DependencyCondition { return nil }

func (d *URL) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionActive
}

func (d *URL) Apply(source *template.ReplaceSource, ctx *template.Context) {
	_, moduleID, ok := includedTarget(ctx, d.id)
	if !ok {
		source.Replace(d.span.Start, d.span.End, missingModule(d.request)+", "+runtime.BaseURI.String())
		ctx.RuntimeRequirements.Insert(runtime.BaseURI)
		return
	}
	ctx.RuntimeRequirements.Insert(runtime.Require | runtime.BaseURI)
	source.Replace(d.span.Start, d.span.End,
		"/* asset import */ "+runtime.Require.String()+"("+template.ModuleIDExpr(d.request, moduleID)+"), "+runtime.BaseURI.String())
}

// The arguments of "new Worker(new URL('./worker.js', import.meta.url))".
// The worker module is the entry of its own chunk, so the URL points at that
// chunk's file instead of at a module.
type Worker struct {
	base
	request string

	// The constructor that was matched, e.g. "Worker" or "Worker from
	// worker_threads"
	syntax string
}

func NewWorker(id graph.DependencyID, span graph.Span, request string, syntax string) *Worker {
	return &Worker{base: newBaseWithSpan(id, span), request: request, syntax: syntax}
}

func (d *Worker) Category() graph.DependencyCategory   { return graph.CategoryWorker }
func (d *Worker) Type() graph.DependencyType           { return graph.TypeNewWorker }
func (d *Worker) DebugName() string                    { return "WorkerDependency" }
func (d *Worker) Request() string                      { return d.request }
func (d *Worker) Condition() graph.DependencyCondition { return nil }
func (d *Worker) Syntax() string                       { return d.syntax }

func (d *Worker) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionActive
}

func (d *Worker) Apply(source *template.ReplaceSource, ctx *template.Context) {
	if _, ok := ctx.ModuleGraph.ModuleByDependency(d.id); !ok {
		source.Replace(d.span.Start, d.span.End, missingModule(d.request))
		return
	}
	ukey, ok := ctx.ChunkGraph.WorkerChunk(d.id)
	if !ok {
		panic(graph.InvariantError{Text: fmt.Sprintf("worker dependency %s has no chunk", d.id)})
	}
	chunk := ctx.ChunkGraph.Chunk(ukey)
	ctx.RuntimeRequirements.Insert(runtime.PublicPath | runtime.BaseURI)
	source.Replace(d.span.Start, d.span.End,
		"/* worker import */ "+runtime.PublicPath.String()+" + "+template.Quote(chunk.Filename)+", "+runtime.BaseURI.String())
}
