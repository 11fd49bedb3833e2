package dependency

import (
	"fmt"
	"strings"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// A dynamic "import(`./dir/${name}`)" whose request is only partially known.
// The request resolves to a context module that maps the remaining path to
// the real module. The callee is replaced by a call of the context module
// and, when the request has a directory prefix, the argument is rewritten to
// be relative to that directory.
type ImportContext struct {
	base
	calleeStart uint32
	calleeEnd   uint32
	argsEnd     uint32
	request     string
}

func NewImportContext(id graph.DependencyID, span graph.Span, calleeStart uint32, calleeEnd uint32, argsEnd uint32, request string) *ImportContext {
	return &ImportContext{
		base:        newBaseWithSpan(id, span),
		calleeStart: calleeStart,
		calleeEnd:   calleeEnd,
		argsEnd:     argsEnd,
		request:     request,
	}
}

func (d *ImportContext) Category() graph.DependencyCategory   { return graph.CategoryEsm }
func (d *ImportContext) Type() graph.DependencyType           { return graph.TypeImportContext }
func (d *ImportContext) DebugName() string                    { return "ImportContextDependency" }
func (d *ImportContext) Request() string                      { return d.request }
func (d *ImportContext) Condition() graph.DependencyCondition { return nil }

func (d *ImportContext) SideEffectState(*graph.ModuleGraph, map[graph.ModuleIdentifier]bool) graph.ConnectionState {
	return graph.ConnectionActive
}

func (d *ImportContext) Apply(source *template.ReplaceSource, ctx *template.Context) {
	target, ok := ctx.ModuleGraph.ModuleByDependency(d.id)
	if !ok {
		panic(graph.InvariantError{Text: fmt.Sprintf("context dependency %s was not resolved", d.id)})
	}
	moduleID := ctx.ModuleID(target.Identifier)

	ctx.RuntimeRequirements.Insert(runtime.Require)
	source.Replace(d.calleeStart, d.calleeEnd, runtime.Require.String()+"("+template.ModuleIDExpr(d.request, moduleID)+")")

	if context := NormalizeContext(d.request); context != "" {
		source.Insert(d.calleeEnd, "(")
		source.Insert(d.argsEnd, ".replace('"+context+"', './'))")
	}
}

// Turns the static prefix of a context request into the directory that
// paths are relative to. The current directory normalizes to "".
func NormalizeContext(request string) string {
	if request == "./" || request == "." {
		return ""
	}
	if strings.HasSuffix(request, "/") {
		return request
	}
	return request + "/"
}
