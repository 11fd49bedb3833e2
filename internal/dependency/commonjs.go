package dependency

import (
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// A "require('x')" call. The whole call is rewritten, so "span" covers it
// from the callee to the closing parenthesis.
type CommonJSRequire struct {
	base
	request string
}

func NewCommonJSRequire(id graph.DependencyID, span graph.Span, request string) *CommonJSRequire {
	return &CommonJSRequire{base: newBaseWithSpan(id, span), request: request}
}

func (d *CommonJSRequire) Category() graph.DependencyCategory   { return graph.CategoryCommonJS }
func (d *CommonJSRequire) Type() graph.DependencyType           { return graph.TypeCjsRequire }
func (d *CommonJSRequire) DebugName() string                    { return "CommonJSRequireDependency" }
func (d *CommonJSRequire) Request() string                      { return d.request }
func (d *CommonJSRequire) Condition() graph.DependencyCondition { return nil }

// The importer may observe anything, so the target is always evaluated
func (d *CommonJSRequire) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionActive
}

func (d *CommonJSRequire) Apply(source *template.ReplaceSource, ctx *template.Context) {
	_, moduleID, ok := includedTarget(ctx, d.id)
	if !ok {
		source.Replace(d.span.Start, d.span.End, missingModule(d.request))
		return
	}
	ctx.RuntimeRequirements.Insert(runtime.Require)
	source.Replace(d.span.Start, d.span.End, runtime.Require.String()+"("+template.ModuleIDExpr(d.request, moduleID)+")")
}
