package treeshaking_test

import (
	"testing"

	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/treeshaking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(module graph.ModuleIdentifier, index uint32) graph.DependencyID {
	return graph.MakeDependencyID(module, index)
}

func addModule(mg *graph.ModuleGraph, module graph.ModuleIdentifier, deps ...graph.Dependency) *graph.Module {
	m := &graph.Module{
		Identifier:   module,
		Source:       logger.Source{KeyPath: string(module), PrettyPath: string(module)},
		Dependencies: deps,
		ExportsKind:  graph.ExportsESM,
	}
	mg.AddModule(m)
	return m
}

func resolveAll(mg *graph.ModuleGraph, module graph.ModuleIdentifier, targets map[string]graph.ModuleIdentifier) {
	m, _ := mg.Module(module)
	for _, dep := range m.Dependencies {
		if md, ok := dep.(graph.ModuleDependency); ok {
			if target, ok := targets[md.Request()]; ok {
				mg.SetResolvedModule(module, dep, target)
			}
		}
	}
}

func usage(mg *graph.ModuleGraph, module graph.ModuleIdentifier, name string) graph.UsageState {
	return mg.ExportUsage(mg.ExportsInfoOfModule(module), name)
}

// a.js: import { used } from "./b.js"; used();
// b.js: export { used, unused } from "./c.js";
// c.js: export function used() {} export function unused() {}
func reexportChain() (*graph.ModuleGraph, []treeshaking.SymbolRef) {
	mg := graph.NewModuleGraph()
	addModule(mg, "./a.js",
		dependency.NewImportSideEffect(id("./a.js", 0), "./b.js", 1),
		dependency.NewImportSpecifier(id("./a.js", 1), graph.Span{Start: 0, End: 4}, "./b.js", 1, []string{"used"}, true),
	)
	addModule(mg, "./b.js",
		dependency.NewImportSideEffect(id("./b.js", 0), "./c.js", 1),
		dependency.NewExportImportedSpecifier(id("./b.js", 1), "./c.js", 1, "used", []string{"used"}),
		dependency.NewExportImportedSpecifier(id("./b.js", 2), "./c.js", 1, "unused", []string{"unused"}),
	)
	addModule(mg, "./c.js",
		dependency.NewExportSpecifier(id("./c.js", 0), "used", "used"),
		dependency.NewExportSpecifier(id("./c.js", 1), "unused", "unused"),
	)
	resolveAll(mg, "./a.js", map[string]graph.ModuleIdentifier{"./b.js": "./b.js"})
	resolveAll(mg, "./b.js", map[string]graph.ModuleIdentifier{"./c.js": "./c.js"})

	refs := []treeshaking.SymbolRef{
		treeshaking.Indirect{Kind: treeshaking.IndirectImport, Importer: "./a.js", Source: "./b.js", Imported: "used", Local: "used", DependencyID: id("./a.js", 0)},
		treeshaking.Usage{Module: "./a.js", Local: "used"},
		treeshaking.Indirect{Kind: treeshaking.IndirectReExport, Importer: "./b.js", Source: "./c.js", Imported: "used", Local: "used", DependencyID: id("./b.js", 1)},
		treeshaking.Indirect{Kind: treeshaking.IndirectReExport, Importer: "./b.js", Source: "./c.js", Imported: "unused", Local: "unused", DependencyID: id("./b.js", 2)},
		treeshaking.Declaration{Module: "./c.js", Local: "used", Exported: "used"},
		treeshaking.Declaration{Module: "./c.js", Local: "unused", Exported: "unused"},
	}
	return mg, refs
}

func TestReexportChain(t *testing.T) {
	mg, refs := reexportChain()
	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./a.js"}, SymbolRefs: refs, PruneModules: true})

	assert.Equal(t, graph.UsageUsed, usage(mg, "./c.js", "used"))
	assert.Equal(t, graph.UsageUnused, usage(mg, "./c.js", "unused"))
	assert.Equal(t, graph.UsageUsed, usage(mg, "./b.js", "used"))
	assert.Equal(t, graph.UsageUnused, usage(mg, "./b.js", "unused"))
	assert.Equal(t, []string{"used"}, result.UsedExports["./c.js"])
	assert.Equal(t, map[graph.ModuleIdentifier]bool{"./a.js": true, "./b.js": true, "./c.js": true}, result.IncludeModuleIDs)
	assert.Empty(t, result.BailoutModules)

	assert.True(t, result.UsedSymbolRefs[refs[2]])
	assert.False(t, result.UsedSymbolRefs[refs[3]])
	assert.True(t, result.UsedSymbolRefs[refs[4]])
	assert.False(t, result.UsedSymbolRefs[refs[5]])

	unusedConn, ok := mg.ConnectionByDependency(id("./b.js", 2))
	require.True(t, ok)
	assert.Equal(t, graph.ConnectionInactive, unusedConn.ActiveState(nil, mg))
	assert.Empty(t, log.Done())
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	mg, refs := reexportChain()
	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	input := treeshaking.Input{Entries: []graph.ModuleIdentifier{"./a.js"}, SymbolRefs: refs, PruneModules: true}

	first := treeshaking.Analyze(log, mg, input)
	firstSignature := mg.UsageSignature(mg.ExportsInfoOfModule("./c.js"))
	second := treeshaking.Analyze(log, mg, input)
	assert.Equal(t, first, second)
	assert.Equal(t, firstSignature, mg.UsageSignature(mg.ExportsInfoOfModule("./c.js")))
}

func TestWorkerBailout(t *testing.T) {
	mg := graph.NewModuleGraph()
	worker := dependency.NewWorker(id("./main.js", 0), graph.Span{Start: 11, End: 40}, "./d.js", "Worker")
	addModule(mg, "./main.js", worker)
	d := addModule(mg, "./d.js",
		dependency.NewExportSpecifier(id("./d.js", 0), "x", "x"),
		dependency.NewExportSpecifier(id("./d.js", 1), "y", "y"),
	)
	d.SideEffectFree = true
	mg.SetResolvedModule("./main.js", worker, "./d.js")
	refs := []treeshaking.SymbolRef{
		treeshaking.Worker{Importer: "./main.js", Source: "./d.js", DependencyID: worker.ID()},
		treeshaking.Declaration{Module: "./d.js", Local: "x", Exported: "x"},
		treeshaking.Declaration{Module: "./d.js", Local: "y", Exported: "y"},
	}

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})

	assert.Equal(t, treeshaking.BailoutDynamicReference, result.BailoutModules["./d.js"])
	assert.True(t, result.IncludeModuleIDs["./d.js"])
	assert.Equal(t, []string{"x", "y"}, result.UsedExports["./d.js"])
	assert.True(t, result.UsedSymbolRefs[refs[0]])
	info, ok := mg.LookupExport(mg.ExportsInfoOfModule("./d.js"), "x")
	require.True(t, ok)
	assert.False(t, info.CanMangle())
}

func TestSideEffectFreeModuleIsSkipped(t *testing.T) {
	build := func() (*graph.ModuleGraph, []treeshaking.SymbolRef) {
		mg := graph.NewModuleGraph()
		pure := dependency.NewImportSideEffect(id("./main.js", 0), "./pure.js", 1)
		impure := dependency.NewImportSideEffect(id("./main.js", 1), "./impure.js", 2)
		addModule(mg, "./main.js", pure, impure)
		p := addModule(mg, "./pure.js", dependency.NewExportSpecifier(id("./pure.js", 0), "helper", "helper"))
		p.SideEffectFree = true
		addModule(mg, "./impure.js")
		mg.SetResolvedModule("./main.js", pure, "./pure.js")
		mg.SetResolvedModule("./main.js", impure, "./impure.js")
		return mg, []treeshaking.SymbolRef{treeshaking.Declaration{Module: "./pure.js", Local: "helper", Exported: "helper"}}
	}

	mg, refs := build()
	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	assert.False(t, result.IncludeModuleIDs["./pure.js"])
	assert.True(t, result.IncludeModuleIDs["./impure.js"])
	assert.Equal(t, map[graph.ModuleIdentifier]bool{"./pure.js": true}, result.SideEffectsFreeModules)

	// Without pruning everything is kept, but usage is still computed
	mg, refs = build()
	treeshaking.FlagExports(log, mg)
	result = treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs})
	assert.True(t, result.IncludeModuleIDs["./pure.js"])
	assert.Equal(t, graph.UsageUnused, usage(mg, "./pure.js", "helper"))
}

func namespaceGraph(member string) (*graph.ModuleGraph, []treeshaking.SymbolRef) {
	mg := graph.NewModuleGraph()
	sideEffect := dependency.NewImportSideEffect(id("./main.js", 0), "./lib.js", 1)
	addModule(mg, "./main.js", sideEffect)
	addModule(mg, "./lib.js",
		dependency.NewExportSpecifier(id("./lib.js", 0), "alpha", "alpha"),
		dependency.NewExportSpecifier(id("./lib.js", 1), "beta", "beta"),
	)
	mg.SetResolvedModule("./main.js", sideEffect, "./lib.js")
	return mg, []treeshaking.SymbolRef{
		treeshaking.Star{Kind: treeshaking.StarImportAllAs, Owner: "./main.js", Source: "./lib.js", Binding: "ns", DependencyID: sideEffect.ID()},
		treeshaking.Usage{Module: "./main.js", Local: "ns", Member: member},
		treeshaking.Declaration{Module: "./lib.js", Local: "alpha", Exported: "alpha"},
		treeshaking.Declaration{Module: "./lib.js", Local: "beta", Exported: "beta"},
	}
}

func TestNamespaceMemberAccess(t *testing.T) {
	mg, refs := namespaceGraph("alpha")
	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	assert.Equal(t, []string{"alpha"}, result.UsedExports["./lib.js"])
	assert.True(t, result.UsedSymbolRefs[refs[0]])
}

func TestNamespaceEscape(t *testing.T) {
	mg, refs := namespaceGraph("")
	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	assert.Equal(t, []string{"alpha", "beta"}, result.UsedExports["./lib.js"])
	assert.Empty(t, result.BailoutModules)

	treeshaking.MangleExports(mg, result)
	names, ok := mg.GetUsedName(mg.ExportsInfoOfModule("./lib.js"), nil, []string{"alpha"})
	require.True(t, ok)
	assert.Equal(t, []string{"alpha"}, names)
}

func TestUnresolvedExportBailsOut(t *testing.T) {
	mg := graph.NewModuleGraph()
	sideEffect := dependency.NewImportSideEffect(id("./main.js", 0), "./lib.js", 1)
	addModule(mg, "./main.js", sideEffect)
	addModule(mg, "./lib.js", dependency.NewExportSpecifier(id("./lib.js", 0), "real", "real"))
	mg.SetResolvedModule("./main.js", sideEffect, "./lib.js")
	refs := []treeshaking.SymbolRef{
		treeshaking.Indirect{Kind: treeshaking.IndirectImport, Importer: "./main.js", Source: "./lib.js", Imported: "missing", Local: "missing", DependencyID: sideEffect.ID()},
		treeshaking.Usage{Module: "./main.js", Local: "missing"},
		treeshaking.Declaration{Module: "./lib.js", Local: "real", Exported: "real"},
	}

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	assert.Equal(t, treeshaking.BailoutUnresolved, result.BailoutModules["./lib.js"])
	assert.Equal(t, graph.UsageUsed, usage(mg, "./lib.js", "real"))

	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.Equal(t, logger.Warning, msgs[0].Kind)
	assert.Equal(t, "No matching export in \"./lib.js\" for import \"missing\"", msgs[0].Text)
}

func TestCommonJSRequireBailsOut(t *testing.T) {
	mg := graph.NewModuleGraph()
	cjs := dependency.NewCommonJSRequire(id("./main.js", 0), graph.Span{Start: 0, End: 17}, "./lib.js")
	addModule(mg, "./main.js", cjs)
	lib := addModule(mg, "./lib.js", dependency.NewStaticExports(id("./lib.js", 0), []string{"a"}, false))
	lib.ExportsKind = graph.ExportsCommonJS
	lib.SideEffectFree = true
	mg.SetResolvedModule("./main.js", cjs, "./lib.js")

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, PruneModules: true})
	assert.Equal(t, treeshaking.BailoutCommonJS, result.BailoutModules["./lib.js"])
	assert.True(t, result.IncludeModuleIDs["./lib.js"])
	assert.Equal(t, "commonjs", result.BailoutModules["./lib.js"].String())
}

func TestStarReexportConflicts(t *testing.T) {
	mg := graph.NewModuleGraph()
	starA := dependency.NewExportStar(id("./index.js", 0), "./a.js", 1)
	starB := dependency.NewExportStar(id("./index.js", 1), "./b.js", 2)
	addModule(mg, "./index.js", starA, starB, dependency.NewExportSpecifier(id("./index.js", 2), "shadowed", "local"))
	addModule(mg, "./a.js",
		dependency.NewExportSpecifier(id("./a.js", 0), "shared", "shared"),
		dependency.NewExportSpecifier(id("./a.js", 1), "shadowed", "shadowed"),
		dependency.NewExportSpecifier(id("./a.js", 2), "onlyA", "onlyA"),
	)
	addModule(mg, "./b.js", dependency.NewExportSpecifier(id("./b.js", 0), "shared", "shared"))
	mg.SetResolvedModule("./index.js", starA, "./a.js")
	mg.SetResolvedModule("./index.js", starB, "./b.js")

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	exports := mg.ExportsInfoOfModule("./index.js")

	shared, ok := mg.LookupExport(exports, "shared")
	require.True(t, ok)
	assert.True(t, shared.Ambiguous)
	assert.Equal(t, starA.ID(), shared.Target)

	shadowed, ok := mg.LookupExport(exports, "shadowed")
	require.True(t, ok)
	assert.False(t, shadowed.Ambiguous)
	assert.Equal(t, id("./index.js", 2), shadowed.Target)
	assert.True(t, shadowed.TerminalBinding)

	onlyA, ok := mg.LookupExport(exports, "onlyA")
	require.True(t, ok)
	assert.Equal(t, []string{"onlyA"}, onlyA.TargetExport)
	assert.Equal(t, graph.ModuleIdentifier("./a.js"), onlyA.TargetConnection.Module)

	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "\"shared\"")

	// Running again reports nothing new
	treeshaking.FlagExports(log, mg)
	assert.Len(t, log.Done(), 1)
}

func TestStarReexportUsage(t *testing.T) {
	mg := graph.NewModuleGraph()
	sideEffect := dependency.NewImportSideEffect(id("./main.js", 0), "./index.js", 1)
	addModule(mg, "./main.js", sideEffect)
	star := dependency.NewExportStar(id("./index.js", 0), "./a.js", 1)
	addModule(mg, "./index.js", star)
	addModule(mg, "./a.js",
		dependency.NewExportSpecifier(id("./a.js", 0), "one", "one"),
		dependency.NewExportSpecifier(id("./a.js", 1), "two", "two"),
	)
	mg.SetResolvedModule("./main.js", sideEffect, "./index.js")
	mg.SetResolvedModule("./index.js", star, "./a.js")
	starRef := treeshaking.Star{Kind: treeshaking.StarReExportAll, Owner: "./index.js", Source: "./a.js", DependencyID: star.ID()}
	refs := []treeshaking.SymbolRef{
		treeshaking.Indirect{Kind: treeshaking.IndirectImport, Importer: "./main.js", Source: "./index.js", Imported: "two", Local: "two", DependencyID: sideEffect.ID()},
		treeshaking.Usage{Module: "./main.js", Local: "two"},
		starRef,
		treeshaking.Declaration{Module: "./a.js", Local: "one", Exported: "one"},
		treeshaking.Declaration{Module: "./a.js", Local: "two", Exported: "two"},
	}

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	assert.Equal(t, []string{"two"}, result.UsedExports["./a.js"])
	assert.Equal(t, []string{"two"}, result.UsedExports["./index.js"])
	assert.True(t, result.UsedSymbolRefs[starRef])
	assert.Empty(t, result.BailoutModules)

	conn, _ := mg.ConnectionByDependency(star.ID())
	assert.Equal(t, graph.ConnectionActive, conn.ActiveState(nil, mg))
}

func TestMangleExports(t *testing.T) {
	mg := graph.NewModuleGraph()
	sideEffect := dependency.NewImportSideEffect(id("./main.js", 0), "./lib.js", 1)
	addModule(mg, "./main.js", sideEffect)
	addModule(mg, "./lib.js",
		dependency.NewExportSpecifier(id("./lib.js", 0), "longName", "longName"),
		dependency.NewExportSpecifier(id("./lib.js", 1), "otherName", "otherName"),
		dependency.NewExportSpecifier(id("./lib.js", 2), "a", "a"),
		dependency.NewExportSpecifier(id("./lib.js", 3), "unusedName", "unusedName"),
	)
	mg.SetResolvedModule("./main.js", sideEffect, "./lib.js")
	var refs []treeshaking.SymbolRef
	for _, name := range []string{"longName", "otherName", "a"} {
		refs = append(refs,
			treeshaking.Indirect{Kind: treeshaking.IndirectImport, Importer: "./main.js", Source: "./lib.js", Imported: name, Local: name, DependencyID: sideEffect.ID()},
			treeshaking.Usage{Module: "./main.js", Local: name},
		)
	}
	for _, name := range []string{"longName", "otherName", "a", "unusedName"} {
		refs = append(refs, treeshaking.Declaration{Module: "./lib.js", Local: name, Exported: name})
	}

	log := logger.NewDeferLog()
	treeshaking.FlagExports(log, mg)
	result := treeshaking.Analyze(log, mg, treeshaking.Input{Entries: []graph.ModuleIdentifier{"./main.js"}, SymbolRefs: refs, PruneModules: true})
	treeshaking.MangleExports(mg, result)

	exports := mg.ExportsInfoOfModule("./lib.js")
	usedName := func(name string) string {
		names, ok := mg.GetUsedName(exports, nil, []string{name})
		require.True(t, ok)
		return names[0]
	}
	assert.Equal(t, "b", usedName("longName"))
	assert.Equal(t, "c", usedName("otherName"))
	assert.Equal(t, "a", usedName("a"))
	_, ok := mg.GetUsedName(exports, nil, []string{"unusedName"})
	assert.False(t, ok)
}
