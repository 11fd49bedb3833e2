package dependency

import (
	"github.com/evanw/packcore/internal/eval"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// The request of a named entry point. Entry dependencies belong to no
// module, so their id uses the entry name as the module part.
type Entry struct {
	base
	request string
	name    string
}

func NewEntry(name string, request string) *Entry {
	return &Entry{base: newBase(EntryDependencyID(name)), request: request, name: name}
}

func EntryDependencyID(name string) graph.DependencyID {
	return graph.MakeDependencyID(graph.ModuleIdentifier("entry:"+name), 0)
}

func (d *Entry) Category() graph.DependencyCategory   { return graph.CategoryEntry }
func (d *Entry) Type() graph.DependencyType           { return graph.TypeEntry }
func (d *Entry) DebugName() string                    { return "EntryDependency" }
func (d *Entry) Request() string                      { return d.request }
func (d *Entry) Condition() graph.DependencyCondition { return nil }
func (d *Entry) Name() string                         { return d.name }

func (d *Entry) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionActive
}

// Replaces a span with fixed code. This is used to remove import and export
// statements once the other templates took over their job, and to inline
// the value of expressions that were evaluated at compile time.
type Const struct {
	base
	code    string
	globals runtime.Globals
}

func NewConst(id graph.DependencyID, span graph.Span, code string, globals runtime.Globals) *Const {
	return &Const{base: newBaseWithSpan(id, span), code: code, globals: globals}
}

// Inlines a statically evaluated expression. This fails if the value isn't
// known, has no source range, or evaluating the original could have side
// effects that would be lost.
func NewConstFromEvaluated(id graph.DependencyID, value *eval.BasicEvaluatedExpression) (*Const, bool) {
	if !value.HasRange || value.CouldHaveSideEffects() || !value.IsCompileTimeValue() {
		return nil, false
	}
	code, ok := value.Code()
	if !ok {
		return nil, false
	}
	return NewConst(id, value.Range, code, 0), true
}

func (d *Const) Category() graph.DependencyCategory { return graph.CategoryUnknown }
func (d *Const) Type() graph.DependencyType         { return graph.TypeConst }
func (d *Const) DebugName() string                  { return "ConstDependency" }
func (d *Const) Code() string                       { return d.code }

func (d *Const) Apply(source *template.ReplaceSource, ctx *template.Context) {
	ctx.RuntimeRequirements.Insert(d.globals)
	source.Replace(d.span.Start, d.span.End, d.code)
}

// Records that a module uses runtime globals without rewriting any code,
// e.g. a CommonJS module that reads "module.id"
type RuntimeRequirements struct {
	base
	globals runtime.Globals
}

func NewRuntimeRequirements(id graph.DependencyID, globals runtime.Globals) *RuntimeRequirements {
	return &RuntimeRequirements{base: newBase(id), globals: globals}
}

func (d *RuntimeRequirements) Category() graph.DependencyCategory { return graph.CategoryUnknown }
func (d *RuntimeRequirements) Type() graph.DependencyType         { return graph.TypeRuntimeRequirements }
func (d *RuntimeRequirements) DebugName() string                  { return "RuntimeRequirementsDependency" }

func (d *RuntimeRequirements) Apply(_ *template.ReplaceSource, ctx *template.Context) {
	ctx.RuntimeRequirements.Insert(d.globals)
}

// Declares exports that have no syntax of their own, such as the properties
// assigned to "module.exports" in a CommonJS module or the exports of a
// module whose shape can't be known.
type StaticExports struct {
	base
	names     []string
	unknown   bool
	canMangle bool
}

func NewStaticExports(id graph.DependencyID, names []string, canMangle bool) *StaticExports {
	return &StaticExports{base: newBase(id), names: names, canMangle: canMangle}
}

func NewUnknownExports(id graph.DependencyID) *StaticExports {
	return &StaticExports{base: newBase(id), unknown: true}
}

func (d *StaticExports) Category() graph.DependencyCategory { return graph.CategoryUnknown }
func (d *StaticExports) Type() graph.DependencyType         { return graph.TypeStaticExports }
func (d *StaticExports) DebugName() string                  { return "StaticExportsDependency" }

func (d *StaticExports) Exports(*graph.ModuleGraph) *graph.ExportsSpec {
	if d.unknown {
		return &graph.ExportsSpec{Unknown: true, CanMangle: graph.Ptr(false)}
	}
	spec := &graph.ExportsSpec{
		CanMangle:       graph.Ptr(d.canMangle),
		TerminalBinding: graph.Ptr(true),
	}
	for _, name := range d.names {
		spec.Exports = append(spec.Exports, graph.ExportName(name))
	}
	return spec
}
