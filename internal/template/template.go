package template

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/evanw/packcore/internal/ast"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
)

// The code generation half of the dependency contract
type DependencyTemplate interface {
	Apply(source *ReplaceSource, ctx *Context)
}

// Everything a dependency template may look at while one module is being
// generated. The module graph and chunk graph are read-only here.
type Context struct {
	ModuleGraph *graph.ModuleGraph
	ChunkGraph  *graph.ChunkGraph
	Module      *graph.Module
	Runtime     graph.RuntimeSpec

	// If false, export usage is ignored and every export keeps its name
	TreeShaking bool

	InitFragments       []InitFragment
	RuntimeRequirements runtime.Globals
}

func (ctx *Context) AddInitFragment(fragment InitFragment) {
	ctx.InitFragments = append(ctx.InitFragments, fragment)
}

// Resolves the generated names of an export path of "module". The second
// return value is false if nothing should be emitted for the export.
func (ctx *Context) UsedName(module graph.ModuleIdentifier, names []string) ([]string, bool) {
	if !ctx.TreeShaking {
		return names, true
	}
	exports := ctx.ModuleGraph.ExportsInfoOfModule(module)
	if !exports.IsValid() {
		return names, true
	}
	return ctx.ModuleGraph.GetUsedName(exports, ctx.Runtime, names)
}

func (ctx *Context) ModuleID(module graph.ModuleIdentifier) string {
	return ctx.ChunkGraph.MustModuleID(module)
}

// The expression that refers to a module id, annotated with the request
func ModuleIDExpr(request string, id string) string {
	return "/*! " + strings.ReplaceAll(request, "*/", "*\\/") + " */ " + Quote(id)
}

// The variable an ESM import binds the imported module's exports object to
func ImportVarName(target graph.ModuleIdentifier, sourceOrder uint32) string {
	name := ast.GenerateNonUniqueNameFromPath(string(target))
	if name == "" {
		name = "module"
	}
	return "_" + name + "__WEBPACK_IMPORTED_MODULE_" + strconv.FormatUint(uint64(sourceOrder), 10) + "__"
}

// Property access in generated code. Names that aren't valid identifiers use
// brackets.
func PropertyAccess(names []string) string {
	sb := strings.Builder{}
	for _, name := range names {
		if isIdentifier(name) {
			sb.WriteByte('.')
			sb.WriteString(name)
		} else {
			sb.WriteByte('[')
			sb.WriteString(Quote(name))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// Runs every dependency template of the module and renders the result with
// its init fragments
func Generate(ctx *Context) string {
	source := NewReplaceSource(ctx.Module.Source.Contents)
	for _, dep := range ctx.Module.Dependencies {
		if t, ok := dep.(DependencyTemplate); ok {
			t.Apply(source, ctx)
		}
	}
	return RenderInitFragments(ctx.InitFragments, source.Source())
}

// A JavaScript string literal
func Quote(text string) string {
	bytes, err := json.Marshal(text)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func isIdentifier(text string) bool {
	if text == "" {
		return false
	}
	for i, c := range text {
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
