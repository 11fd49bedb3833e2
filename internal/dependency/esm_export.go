package dependency

import (
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// Defines one local binding as an export, e.g. "export { value as name }" or
// "export const name = ...". The export getter is added as an init fragment
// and is omitted entirely when the export is unused.
type ExportSpecifier struct {
	base
	name  string
	value string
}

func NewExportSpecifier(id graph.DependencyID, name string, value string) *ExportSpecifier {
	return &ExportSpecifier{base: newBase(id), name: name, value: value}
}

func (d *ExportSpecifier) Category() graph.DependencyCategory { return graph.CategoryEsm }
func (d *ExportSpecifier) Type() graph.DependencyType         { return graph.TypeEsmExportSpecifier }
func (d *ExportSpecifier) DebugName() string                  { return "ExportSpecifierDependency" }

func (d *ExportSpecifier) Exports(*graph.ModuleGraph) *graph.ExportsSpec {
	return &graph.ExportsSpec{
		Exports:         []graph.ExportNameOrSpec{graph.ExportName(d.name)},
		Priority:        graph.Ptr(uint8(1)),
		TerminalBinding: graph.Ptr(true),
	}
}

func (d *ExportSpecifier) Apply(_ *template.ReplaceSource, ctx *template.Context) {
	names, ok := ctx.UsedName(ctx.Module.Identifier, []string{d.name})
	if !ok {
		ctx.AddInitFragment(template.NewInitFragment("/* unused harmony export "+d.name+" */\n", template.StageHarmonyExports, 1, ""))
		return
	}
	ctx.RuntimeRequirements.Insert(runtime.Exports | runtime.DefinePropertyGetters)
	ctx.AddInitFragment(template.NewHarmonyExportInitFragment(
		ctx.Module.ExportsArgument(),
		template.ExportBinding{Name: names[0], Value: "/* binding */ " + d.value},
	))
}

// "export default". The span covers the "export default " prefix. If the
// default export is a named declaration the declaration is kept and bound by
// name, otherwise the expression is assigned to a generated variable.
type ExportExpression struct {
	base
	declName string
}

const defaultExportName = "__WEBPACK_DEFAULT_EXPORT__"

func NewExportExpression(id graph.DependencyID, prefix graph.Span, declName string) *ExportExpression {
	return &ExportExpression{base: newBaseWithSpan(id, prefix), declName: declName}
}

func (d *ExportExpression) Category() graph.DependencyCategory { return graph.CategoryEsm }
func (d *ExportExpression) Type() graph.DependencyType         { return graph.TypeEsmExportExpression }
func (d *ExportExpression) DebugName() string                  { return "ExportExpressionDependency" }

func (d *ExportExpression) Exports(*graph.ModuleGraph) *graph.ExportsSpec {
	return &graph.ExportsSpec{
		Exports:         []graph.ExportNameOrSpec{graph.ExportName("default")},
		Priority:        graph.Ptr(uint8(1)),
		TerminalBinding: graph.Ptr(true),
	}
}

func (d *ExportExpression) Apply(source *template.ReplaceSource, ctx *template.Context) {
	names, used := ctx.UsedName(ctx.Module.Identifier, []string{"default"})

	if d.declName != "" {
		source.Replace(d.span.Start, d.span.End, "")
		if !used {
			ctx.AddInitFragment(template.NewInitFragment("/* unused harmony default export */\n", template.StageHarmonyExports, 1, ""))
			return
		}
		ctx.RuntimeRequirements.Insert(runtime.Exports | runtime.DefinePropertyGetters)
		ctx.AddInitFragment(template.NewHarmonyExportInitFragment(
			ctx.Module.ExportsArgument(),
			template.ExportBinding{Name: names[0], Value: "/* binding */ " + d.declName},
		))
		return
	}

	if !used {
		source.Replace(d.span.Start, d.span.End, "/* unused harmony default export */ var _unused_webpack_default_export = ")
		return
	}
	source.Replace(d.span.Start, d.span.End, "/* harmony default export */ const "+defaultExportName+" = ")
	ctx.RuntimeRequirements.Insert(runtime.Exports | runtime.DefinePropertyGetters)
	ctx.AddInitFragment(template.NewHarmonyExportInitFragment(
		ctx.Module.ExportsArgument(),
		template.ExportBinding{Name: names[0], Value: "/* export default binding */ " + defaultExportName},
	))
}

// "export { imported as name } from 'x'" and "export * as name from 'x'".
// The connection is only active while the re-exported name is used.
type ExportImportedSpecifier struct {
	base
	owner       graph.ModuleIdentifier
	request     string
	sourceOrder uint32
	name        string

	// Nil for "export * as name"
	ids []string
}

func NewExportImportedSpecifier(id graph.DependencyID, request string, sourceOrder uint32, name string, ids []string) *ExportImportedSpecifier {
	return &ExportImportedSpecifier{
		base:        newBase(id),
		owner:       id.Module,
		request:     request,
		sourceOrder: sourceOrder,
		name:        name,
		ids:         ids,
	}
}

func (d *ExportImportedSpecifier) Category() graph.DependencyCategory { return graph.CategoryEsm }
func (d *ExportImportedSpecifier) Type() graph.DependencyType         { return graph.TypeEsmExportImportedSpecifier }
func (d *ExportImportedSpecifier) DebugName() string                  { return "ExportImportedSpecifierDependency" }
func (d *ExportImportedSpecifier) Request() string                    { return d.request }

func (d *ExportImportedSpecifier) Condition() graph.DependencyCondition {
	return exportUsedCondition{owner: d.owner, name: d.name}
}

func (d *ExportImportedSpecifier) Exports(mg *graph.ModuleGraph) *graph.ExportsSpec {
	conn, _ := mg.ConnectionByDependency(d.id)
	return &graph.ExportsSpec{
		Exports: []graph.ExportNameOrSpec{graph.ExportOf(&graph.ExportSpec{
			Name:      d.name,
			Export:    d.ids,
			Namespace: d.ids == nil,
			From:      conn,
		})},
		Priority:        graph.Ptr(uint8(1)),
		TerminalBinding: graph.Ptr(false),
		From:            conn,
	}
}

func (d *ExportImportedSpecifier) Apply(_ *template.ReplaceSource, ctx *template.Context) {
	names, ok := ctx.UsedName(d.owner, []string{d.name})
	if !ok {
		ctx.AddInitFragment(template.NewInitFragment("/* unused harmony reexport "+d.name+" */\n", template.StageHarmonyExports, 1, ""))
		return
	}
	target, _, ok := includedTarget(ctx, d.id)
	if !ok {
		return
	}
	value := template.ImportVarName(target.Identifier, d.sourceOrder)
	if d.ids != nil {
		if targetNames, ok := ctx.UsedName(target.Identifier, d.ids); ok {
			value += template.PropertyAccess(targetNames)
		} else {
			value += template.PropertyAccess(d.ids)
		}
	}
	ctx.RuntimeRequirements.Insert(runtime.Exports | runtime.DefinePropertyGetters)
	ctx.AddInitFragment(template.NewHarmonyExportInitFragment(
		ctx.Module.ExportsArgument(),
		template.ExportBinding{Name: names[0], Value: value},
	))
}

// "export * from 'x'". Provides every name the target provides except
// "default", at a lower priority than explicit exports.
type ExportStar struct {
	base
	owner       graph.ModuleIdentifier
	request     string
	sourceOrder uint32
}

func NewExportStar(id graph.DependencyID, request string, sourceOrder uint32) *ExportStar {
	return &ExportStar{base: newBase(id), owner: id.Module, request: request, sourceOrder: sourceOrder}
}

func (d *ExportStar) Category() graph.DependencyCategory { return graph.CategoryEsm }
func (d *ExportStar) Type() graph.DependencyType         { return graph.TypeEsmExportStar }
func (d *ExportStar) DebugName() string                  { return "ExportStarDependency" }
func (d *ExportStar) Request() string                    { return d.request }

func (d *ExportStar) Condition() graph.DependencyCondition {
	return starReexportCondition{owner: d.owner, dep: d.id}
}

func (d *ExportStar) Exports(mg *graph.ModuleGraph) *graph.ExportsSpec {
	conn, ok := mg.ConnectionByDependency(d.id)
	if !ok {
		return nil
	}
	targetExports := mg.ExportsInfoOfModule(conn.Module)
	if !targetExports.IsValid() {
		return nil
	}
	spec := &graph.ExportsSpec{
		Priority:        graph.Ptr(uint8(0)),
		TerminalBinding: graph.Ptr(false),
		From:            conn,
		Dependencies:    []graph.ModuleIdentifier{conn.Module},
	}
	if mg.ExportsInfo(targetExports).UnknownProvided {
		spec.Unknown = true
		spec.ExcludeExports = []string{"default"}
		return spec
	}
	for _, info := range mg.OrderedExports(targetExports) {
		if !info.Provided || info.Hidden || info.Name == "default" {
			continue
		}
		spec.Exports = append(spec.Exports, graph.ExportOf(&graph.ExportSpec{
			Name:   info.Name,
			Export: []string{info.Name},
			From:   conn,
		}))
	}
	return spec
}

func (d *ExportStar) Apply(_ *template.ReplaceSource, ctx *template.Context) {
	target, _, ok := includedTarget(ctx, d.id)
	if !ok {
		return
	}
	mg := ctx.ModuleGraph
	importVar := template.ImportVarName(target.Identifier, d.sourceOrder)
	var bindings []template.ExportBinding
	for _, info := range mg.OrderedExports(ctx.Module.Exports()) {
		if !info.HasTarget || info.Target != d.id || info.Ambiguous {
			continue
		}
		names, ok := ctx.UsedName(d.owner, []string{info.Name})
		if !ok {
			continue
		}
		path := info.TargetExport
		if targetNames, ok := ctx.UsedName(target.Identifier, path); ok {
			path = targetNames
		}
		bindings = append(bindings, template.ExportBinding{Name: names[0], Value: importVar + template.PropertyAccess(path)})
	}
	if len(bindings) == 0 {
		return
	}
	ctx.RuntimeRequirements.Insert(runtime.Exports | runtime.DefinePropertyGetters)
	ctx.AddInitFragment(template.NewHarmonyExportInitFragment(ctx.Module.ExportsArgument(), bindings...))
}

// Marks the exports object of an ES module
type Compatibility struct {
	base
}

func NewCompatibility(id graph.DependencyID) *Compatibility {
	return &Compatibility{base: newBase(id)}
}

func (d *Compatibility) Category() graph.DependencyCategory { return graph.CategoryEsm }
func (d *Compatibility) Type() graph.DependencyType         { return graph.TypeEsmCompatibility }
func (d *Compatibility) DebugName() string                  { return "CompatibilityDependency" }

func (d *Compatibility) Apply(_ *template.ReplaceSource, ctx *template.Context) {
	ctx.RuntimeRequirements.Insert(runtime.MakeNamespaceObject | runtime.Exports)
	ctx.AddInitFragment(template.NewInitFragment(
		runtime.MakeNamespaceObject.String()+"("+ctx.Module.ExportsArgument()+");\n",
		template.StageHarmonyExports,
		0,
		"harmony compatibility",
	))
}
