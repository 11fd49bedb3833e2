package dependency

import (
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// The evaluation part of an import or re-export statement. It declares the
// variable that holds the imported module's exports object. Removing the
// statement itself is left to a separate "Const" dependency.
type ImportSideEffect struct {
	base
	request     string
	sourceOrder uint32
}

func NewImportSideEffect(id graph.DependencyID, request string, sourceOrder uint32) *ImportSideEffect {
	return &ImportSideEffect{base: newBase(id), request: request, sourceOrder: sourceOrder}
}

func (d *ImportSideEffect) Category() graph.DependencyCategory   { return graph.CategoryEsm }
func (d *ImportSideEffect) Type() graph.DependencyType           { return graph.TypeEsmImport }
func (d *ImportSideEffect) DebugName() string                    { return "ImportSideEffectDependency" }
func (d *ImportSideEffect) Request() string                      { return d.request }
func (d *ImportSideEffect) Condition() graph.DependencyCondition { return nil }

func (d *ImportSideEffect) SideEffectState(mg *graph.ModuleGraph, visited map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return targetSideEffectState(mg, d.id, visited)
}

func (d *ImportSideEffect) Apply(source *template.ReplaceSource, ctx *template.Context) {
	target, moduleID, ok := includedTarget(ctx, d.id)
	if !ok {
		return
	}
	name := template.ImportVarName(target.Identifier, d.sourceOrder)
	ctx.RuntimeRequirements.Insert(runtime.Require)
	ctx.AddInitFragment(template.NewInitFragment(
		"/* harmony import */ var "+name+" = "+runtime.Require.String()+"("+template.ModuleIDExpr(d.request, moduleID)+");\n",
		template.StageHarmonyImports,
		int(d.sourceOrder),
		"harmony import "+name,
	))
}

// A reference to an imported binding. The span covers the identifier (or
// the whole member expression for namespace member accesses) and is
// rewritten to a property access on the import variable.
type ImportSpecifier struct {
	base
	request     string
	sourceOrder uint32

	// The export path in the imported module. An empty path refers to the
	// namespace object itself.
	ids []string

	// The reference is the callee of a call and must not pass the namespace
	// object as "this"
	call bool
}

func NewImportSpecifier(id graph.DependencyID, span graph.Span, request string, sourceOrder uint32, ids []string, call bool) *ImportSpecifier {
	return &ImportSpecifier{
		base:        newBaseWithSpan(id, span),
		request:     request,
		sourceOrder: sourceOrder,
		ids:         ids,
		call:        call,
	}
}

func (d *ImportSpecifier) Category() graph.DependencyCategory   { return graph.CategoryEsm }
func (d *ImportSpecifier) Type() graph.DependencyType           { return graph.TypeEsmImportSpecifier }
func (d *ImportSpecifier) DebugName() string                    { return "ImportSpecifierDependency" }
func (d *ImportSpecifier) Request() string                      { return d.request }
func (d *ImportSpecifier) Condition() graph.DependencyCondition { return nil }
func (d *ImportSpecifier) IDs() []string                        { return d.ids }

func (d *ImportSpecifier) Apply(source *template.ReplaceSource, ctx *template.Context) {
	target, _, ok := includedTarget(ctx, d.id)
	if !ok {
		source.Replace(d.span.Start, d.span.End, "(/* unused import */ undefined)")
		return
	}
	expr := template.ImportVarName(target.Identifier, d.sourceOrder)
	if len(d.ids) > 0 {
		names, ok := ctx.UsedName(target.Identifier, d.ids)
		if !ok {
			source.Replace(d.span.Start, d.span.End, "(/* unused export */ undefined)")
			return
		}
		expr += template.PropertyAccess(names)
		if d.call {
			expr = "(0," + expr + ")"
		}
	}
	source.Replace(d.span.Start, d.span.End, expr)
}
