package treeshaking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
)

// Why a module is treated as entirely used
type BailoutFlag uint8

const (
	// Referenced through "new URL()" or a worker constructor
	BailoutDynamicReference BailoutFlag = 1 << iota

	// Loaded with "require()" or a context import, which may read any export
	BailoutCommonJS

	// A reference into or out of the module couldn't be followed statically
	BailoutUnresolved
)

func (flags BailoutFlag) String() string {
	var parts []string
	if flags&BailoutDynamicReference != 0 {
		parts = append(parts, "dynamic reference")
	}
	if flags&BailoutCommonJS != 0 {
		parts = append(parts, "commonjs")
	}
	if flags&BailoutUnresolved != 0 {
		parts = append(parts, "unresolved")
	}
	return strings.Join(parts, ", ")
}

type Input struct {
	Entries    []graph.ModuleIdentifier
	SymbolRefs []SymbolRef
	Runtime    graph.RuntimeSpec

	// If false every module ends up in "IncludeModuleIDs" no matter what the
	// analysis found
	PruneModules bool
}

type AnalyzeResult struct {
	UsedSymbolRefs map[SymbolRef]bool

	// Module => exported names that are not unused, sorted
	UsedExports map[graph.ModuleIdentifier][]string

	BailoutModules map[graph.ModuleIdentifier]BailoutFlag

	IncludeModuleIDs map[graph.ModuleIdentifier]bool

	// Modules without side effects that were left out because nothing used
	// them
	SideEffectsFreeModules map[graph.ModuleIdentifier]bool
}

type localKey struct {
	module graph.ModuleIdentifier
	local  string
}

type analyzer struct {
	log    logger.Log
	mg     *graph.ModuleGraph
	input  Input
	refs   map[graph.ModuleIdentifier]*moduleRefs
	result *AnalyzeResult

	included     []graph.ModuleIdentifier
	usedLocals   map[localKey]bool
	usedPaths    map[string]bool
	allExported  map[graph.ModuleIdentifier]bool
	handledConns map[graph.ConnectionID]bool
}

// Computes which exports are used starting from the entry modules. Usage
// from a previous run is reset first, so running this twice on the same
// graph gives the same result.
//
// References that can't be followed statically never fail the analysis.
// They put the module into the bailout set instead, which means all of its
// exports count as used.
func Analyze(log logger.Log, mg *graph.ModuleGraph, input Input) *AnalyzeResult {
	a := &analyzer{
		log:   log,
		mg:    mg,
		input: input,
		refs:  indexSymbolRefs(input.SymbolRefs),
		result: &AnalyzeResult{
			UsedSymbolRefs:         make(map[SymbolRef]bool),
			UsedExports:            make(map[graph.ModuleIdentifier][]string),
			BailoutModules:         make(map[graph.ModuleIdentifier]BailoutFlag),
			IncludeModuleIDs:       make(map[graph.ModuleIdentifier]bool),
			SideEffectsFreeModules: make(map[graph.ModuleIdentifier]bool),
		},
		usedLocals:   make(map[localKey]bool),
		usedPaths:    make(map[string]bool),
		allExported:  make(map[graph.ModuleIdentifier]bool),
		handledConns: make(map[graph.ConnectionID]bool),
	}

	mg.ResetUsage()

	for _, entry := range input.Entries {
		if _, ok := mg.Module(entry); ok {
			a.useAllExports(entry)
		}
	}

	// Following connections can include more modules, and including a module
	// can activate connections whose condition depends on usage
	for a.followConnections() {
	}

	a.finish()
	return a.result
}

func (a *analyzer) moduleRefs(module graph.ModuleIdentifier) *moduleRefs {
	if refs, ok := a.refs[module]; ok {
		return refs
	}
	return &moduleRefs{}
}

func (a *analyzer) markRef(ref SymbolRef) {
	a.result.UsedSymbolRefs[ref] = true
}

func (a *analyzer) includeModule(module graph.ModuleIdentifier) {
	if a.result.IncludeModuleIDs[module] {
		return
	}
	if _, ok := a.mg.Module(module); !ok {
		return
	}
	a.result.IncludeModuleIDs[module] = true
	a.included = append(a.included, module)

	refs := a.moduleRefs(module)
	for _, usage := range refs.usages[""] {
		a.useUsage(usage)
	}
	for _, ref := range refs.dynamic {
		a.markRef(ref)
		var dep graph.DependencyID
		switch r := ref.(type) {
		case URL:
			dep = r.DependencyID
		case Worker:
			dep = r.DependencyID
		}
		if target, ok := a.mg.ModuleByDependency(dep); ok {
			a.bailout(target.Identifier, BailoutDynamicReference)
		}
	}
}

func (a *analyzer) bailout(module graph.ModuleIdentifier, flag BailoutFlag) {
	if _, ok := a.mg.Module(module); !ok {
		return
	}
	a.result.BailoutModules[module] |= flag
	a.useAllExports(module)
}

// Marks every export of a module as used in an unknown way. This happens for
// entry points, bailouts and namespace objects that escape.
func (a *analyzer) useAllExports(module graph.ModuleIdentifier) {
	if a.allExported[module] {
		return
	}
	a.allExported[module] = true
	a.includeModule(module)

	exportsID := a.mg.ExportsInfoOfModule(module)
	if exportsID.IsValid() {
		other := a.mg.ExportInfo(a.mg.ExportsInfo(exportsID).OtherExports)
		other.SetUsed(graph.UsageUsed)
		other.CanMangleUse = false
		for _, info := range a.mg.OrderedExports(exportsID) {
			info.SetUsed(graph.UsageUsed)
			info.CanMangleUse = false
		}
	}

	refs := a.moduleRefs(module)
	for _, name := range sortedKeys(refs.exports) {
		decl := refs.exports[name]
		a.markRef(decl)
		a.useLocal(module, decl.Local)
	}
	for _, name := range sortedKeys(refs.reexports) {
		a.useReExport(module, refs.reexports[name], nil)
	}
	for _, star := range refs.stars {
		a.markRef(star)
		if target, ok := a.mg.ModuleByDependency(star.DependencyID); ok {
			a.useAllExports(target.Identifier)
		}
	}
}

// Marks a top-level binding of a module as live, along with everything the
// code that declares it references
func (a *analyzer) useLocal(module graph.ModuleIdentifier, local string) {
	key := localKey{module: module, local: local}
	if a.usedLocals[key] {
		return
	}
	a.usedLocals[key] = true

	refs := a.moduleRefs(module)
	if binding, ok := refs.imports[local]; ok {
		a.markRef(binding)
		switch r := binding.(type) {
		case Indirect:
			if target, ok := a.target(module, r.DependencyID); ok {
				a.useExport(target, []string{r.Imported}, &r)
			}
		case Star:
			// The namespace object itself is used
			if target, ok := a.target(module, r.DependencyID); ok {
				a.useAllExports(target)
			}
		}
	}
	for _, decl := range refs.locals[local] {
		a.markRef(decl)
	}
	for _, usage := range refs.usages[local] {
		a.useUsage(usage)
	}
}

func (a *analyzer) useUsage(usage Usage) {
	a.markRef(usage)
	if usage.Member != "" {
		switch r := a.moduleRefs(usage.Module).imports[usage.Local].(type) {
		case Star:
			// "ns.member" only uses one export of the namespace
			a.markRef(r)
			if target, ok := a.target(usage.Module, r.DependencyID); ok {
				a.useExport(target, []string{usage.Member}, nil)
			}
			return
		case Indirect:
			a.markRef(r)
			if target, ok := a.target(usage.Module, r.DependencyID); ok {
				a.useExport(target, []string{r.Imported, usage.Member}, &r)
			}
			return
		}
	}
	a.useLocal(usage.Module, usage.Local)
}

// The module an import or re-export refers to. Unresolved references make
// the importer bail out.
func (a *analyzer) target(importer graph.ModuleIdentifier, dep graph.DependencyID) (graph.ModuleIdentifier, bool) {
	target, ok := a.mg.ModuleByDependency(dep)
	if !ok {
		a.bailout(importer, BailoutUnresolved)
		return "", false
	}
	return target.Identifier, true
}

// Marks an export path of "module" as used and follows it to the binding
// that declares it. A path longer than one name only uses properties of the
// first export.
func (a *analyzer) useExport(module graph.ModuleIdentifier, path []string, via *Indirect) {
	key := string(module) + "\x00" + strings.Join(path, "\x00")
	if a.usedPaths[key] {
		return
	}
	a.usedPaths[key] = true
	a.includeModule(module)
	if a.allExported[module] {
		return
	}

	m, ok := a.mg.Module(module)
	if !ok {
		return
	}
	name := path[0]
	exportsID := m.Exports()
	a.markPath(exportsID, path)

	refs := a.moduleRefs(module)
	if decl, ok := refs.exports[name]; ok {
		a.markRef(decl)
		a.useLocal(module, decl.Local)
		return
	}
	if reexport, ok := refs.reexports[name]; ok {
		a.useReExport(module, reexport, path[1:])
		return
	}

	// Export flagging recorded where every re-exported name comes from,
	// including names that only reach this module through "export * from"
	if info, ok := a.mg.LookupExport(exportsID, name); ok && info.HasTarget && info.TargetConnection != nil && !info.Hidden {
		if info.Ambiguous {
			a.bailout(module, BailoutUnresolved)
			return
		}
		for _, star := range refs.stars {
			if star.DependencyID == info.Target {
				a.markRef(star)
			}
		}
		targetPath := append(append([]string{}, info.TargetExport...), path[1:]...)
		if len(targetPath) == 0 {
			a.useAllExports(info.TargetConnection.Module)
		} else {
			a.useExport(info.TargetConnection.Module, targetPath, nil)
		}
		return
	}

	// Modules that aren't ES modules have no static bindings to follow
	if m.ExportsKind != graph.ExportsESM {
		return
	}
	if info, ok := a.mg.LookupExport(exportsID, name); ok && info.Provided && info.TerminalBinding {
		return
	}

	if via != nil {
		if importer, ok := a.mg.Module(via.Importer); ok {
			a.log.AddWarning(&importer.Source, via.Range, fmt.Sprintf(
				"No matching export in %q for import %q", m.Source.PrettyPath, via.Imported))
		}
	}
	a.bailout(module, BailoutUnresolved)
}

func (a *analyzer) useReExport(module graph.ModuleIdentifier, ref SymbolRef, rest []string) {
	a.markRef(ref)
	switch r := ref.(type) {
	case Indirect:
		if target, ok := a.target(module, r.DependencyID); ok {
			a.useExport(target, append([]string{r.Imported}, rest...), &r)
		}
	case Star:
		if target, ok := a.target(module, r.DependencyID); ok {
			if len(rest) == 0 {
				a.useAllExports(target)
			} else {
				a.useExport(target, rest, nil)
			}
		}
	}
}

// Escalates the usage of each name along a path. Intermediate names are
// only used for their properties.
func (a *analyzer) markPath(exportsID graph.ExportsInfoID, path []string) {
	for i, name := range path {
		info := a.mg.GetOrCreateExportInfo(exportsID, name)
		if i == len(path)-1 {
			info.SetUsed(graph.UsageUsed)
			return
		}
		info.SetUsed(graph.UsageOnlyPropertiesUsed)
		exportsID = a.mg.NestedExportsInfo(info)
	}
}

// Walks the outgoing connections of every included module once. Returns
// true if anything new was included.
func (a *analyzer) followConnections() bool {
	changed := false
	for i := 0; i < len(a.included); i++ {
		module := a.included[i]
		for _, conn := range a.mg.OutgoingConnections(module) {
			if a.handledConns[conn.ID] {
				continue
			}
			dep, ok := a.mg.Dependency(conn.Dependency)
			if !ok {
				continue
			}

			switch dep.Type() {
			case graph.TypeCjsRequire, graph.TypeImportContext:
				a.handledConns[conn.ID] = true
				if !a.result.IncludeModuleIDs[conn.Module] || a.result.BailoutModules[conn.Module]&BailoutCommonJS == 0 {
					changed = true
				}
				a.bailout(conn.Module, BailoutCommonJS)
				continue

			case graph.TypeNewURL, graph.TypeNewWorker:
				a.handledConns[conn.ID] = true
				if !a.result.IncludeModuleIDs[conn.Module] {
					changed = true
				}
				a.bailout(conn.Module, BailoutDynamicReference)
				continue
			}

			if !conn.ActiveState(a.input.Runtime, a.mg).IsActive() {
				continue
			}
			if a.result.IncludeModuleIDs[conn.Module] {
				a.handledConns[conn.ID] = true
				continue
			}
			if a.shouldInclude(conn, dep) {
				a.handledConns[conn.ID] = true
				a.includeModule(conn.Module)
				changed = true
			}
		}
	}
	return changed
}

func (a *analyzer) shouldInclude(conn *graph.ModuleGraphConnection, dep graph.Dependency) bool {
	if a.result.BailoutModules[conn.Module] != 0 {
		return true
	}
	if exportsID := a.mg.ExportsInfoOfModule(conn.Module); exportsID.IsValid() && a.mg.IsAnyExportUsed(exportsID) {
		return true
	}
	switch dep.SideEffectState(a.mg, make(map[graph.ModuleIdentifier]bool)) {
	case graph.ConnectionInactive, graph.ConnectionCircular:
		return false
	}
	return true
}

func (a *analyzer) finish() {
	for _, m := range a.mg.Modules() {
		if a.result.IncludeModuleIDs[m.Identifier] {
			var names []string
			for _, info := range a.mg.OrderedExports(m.Exports()) {
				if info.Usage() != graph.UsageUnused {
					names = append(names, info.Name)
				}
			}
			a.result.UsedExports[m.Identifier] = names
		} else if m.SideEffectFree {
			a.result.SideEffectsFreeModules[m.Identifier] = true
		}
	}

	if !a.input.PruneModules {
		for _, m := range a.mg.Modules() {
			a.result.IncludeModuleIDs[m.Identifier] = true
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
