package dependency

import (
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/template"
)

type base struct {
	id      graph.DependencyID
	span    graph.Span
	hasSpan bool
}

func newBase(id graph.DependencyID) base {
	return base{id: id}
}

func newBaseWithSpan(id graph.DependencyID, span graph.Span) base {
	return base{id: id, span: span, hasSpan: true}
}

func (d *base) ID() graph.DependencyID {
	return d.id
}

func (d *base) Span() (graph.Span, bool) {
	return d.span, d.hasSpan
}

func (d *base) Exports(*graph.ModuleGraph) *graph.ExportsSpec {
	return nil
}

func (d *base) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionInactive
}

// The module a dependency resolved to, if it ended up in the output
func includedTarget(ctx *template.Context, id graph.DependencyID) (*graph.Module, string, bool) {
	target, ok := ctx.ModuleGraph.ModuleByDependency(id)
	if !ok {
		return nil, "", false
	}
	moduleID, ok := ctx.ChunkGraph.ModuleID(target.Identifier)
	if !ok {
		return nil, "", false
	}
	return target, moduleID, true
}

func targetSideEffectState(mg *graph.ModuleGraph, id graph.DependencyID, visited map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	target, ok := mg.ModuleByDependency(id)
	if !ok {
		return graph.ConnectionActive
	}
	return mg.ModuleSideEffectState(target.Identifier, visited)
}

// What code gets when a request couldn't be resolved. Evaluating it throws
// the same error Node would.
func missingModule(request string) string {
	return "Object(function webpackMissingModule() { var e = new Error(" +
		template.Quote("Cannot find module '"+request+"'") +
		"); e.code = 'MODULE_NOT_FOUND'; throw e; }())"
}
