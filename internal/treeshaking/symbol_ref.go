package treeshaking

import (
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
)

// An edge of the usage analysis collected while a module is parsed. Every
// variant is a comparable value so that sets of them can be plain maps.
type SymbolRef interface {
	// The module the reference was collected in
	Origin() graph.ModuleIdentifier

	isSymbolRef()
}

// A top-level binding declared in "Module". If "Exported" is not empty the
// binding is also exported under that name. A binding exported under
// several names has one declaration per name.
type Declaration struct {
	Module   graph.ModuleIdentifier
	Local    string
	Exported string
}

type IndirectKind uint8

const (
	// import { Imported as Local } from "Source"
	IndirectImport IndirectKind = iota

	// import Local from "Source"
	IndirectImportDefault

	// export { Imported as Local } from "Source"
	IndirectReExport
)

// A binding that is declared in another module. "Local" is the local name
// for imports and the exported name for re-exports.
type Indirect struct {
	Kind         IndirectKind
	Importer     graph.ModuleIdentifier
	Source       string
	Imported     string
	Local        string
	DependencyID graph.DependencyID
	Range        logger.Range
}

type StarKind uint8

const (
	// import * as Binding from "Source"
	StarImportAllAs StarKind = iota

	// export * as Binding from "Source"
	StarReExportAllAs

	// export * from "Source"
	StarReExportAll
)

type Star struct {
	Kind         StarKind
	Owner        graph.ModuleIdentifier
	Source       string
	Binding      string
	DependencyID graph.DependencyID
}

// A use of "Local" inside "Module". "From" is the top-level declaration
// whose code contains the use, or empty for code that runs when the module
// is evaluated. "Member" is set for a static property access such as
// "ns.foo", which only uses that one property.
type Usage struct {
	Module graph.ModuleIdentifier
	Local  string
	Member string
	From   string
}

// "new URL('./file', import.meta.url)"
type URL struct {
	Importer     graph.ModuleIdentifier
	Source       string
	DependencyID graph.DependencyID
}

// "new Worker(new URL('./file', import.meta.url))"
type Worker struct {
	Importer     graph.ModuleIdentifier
	Source       string
	DependencyID graph.DependencyID
}

func (r Declaration) Origin() graph.ModuleIdentifier { return r.Module }
func (r Indirect) Origin() graph.ModuleIdentifier    { return r.Importer }
func (r Star) Origin() graph.ModuleIdentifier        { return r.Owner }
func (r Usage) Origin() graph.ModuleIdentifier       { return r.Module }
func (r URL) Origin() graph.ModuleIdentifier         { return r.Importer }
func (r Worker) Origin() graph.ModuleIdentifier      { return r.Importer }

func (Declaration) isSymbolRef() {}
func (Indirect) isSymbolRef()    {}
func (Star) isSymbolRef()        {}
func (Usage) isSymbolRef()       {}
func (URL) isSymbolRef()         {}
func (Worker) isSymbolRef()      {}

// The references of one module, grouped the way the analyzer looks them up
type moduleRefs struct {
	// Local name => declarations of that local
	locals map[string][]Declaration

	// Exported name => declaration of the local it exports
	exports map[string]Declaration

	// Local name => import binding (an Indirect or a Star)
	imports map[string]SymbolRef

	// Exported name => re-export (an Indirect or a Star)
	reexports map[string]SymbolRef

	// "export * from" in source order
	stars []Star

	// Enclosing declaration => uses inside it
	usages map[string][]Usage

	// URL and Worker references
	dynamic []SymbolRef
}

func indexSymbolRefs(refs []SymbolRef) map[graph.ModuleIdentifier]*moduleRefs {
	index := make(map[graph.ModuleIdentifier]*moduleRefs)
	get := func(module graph.ModuleIdentifier) *moduleRefs {
		m, ok := index[module]
		if !ok {
			m = &moduleRefs{
				locals:    make(map[string][]Declaration),
				exports:   make(map[string]Declaration),
				imports:   make(map[string]SymbolRef),
				reexports: make(map[string]SymbolRef),
				usages:    make(map[string][]Usage),
			}
			index[module] = m
		}
		return m
	}

	for _, ref := range refs {
		m := get(ref.Origin())
		switch r := ref.(type) {
		case Declaration:
			m.locals[r.Local] = append(m.locals[r.Local], r)
			if r.Exported != "" {
				m.exports[r.Exported] = r
			}

		case Indirect:
			if r.Kind == IndirectReExport {
				m.reexports[r.Local] = r
			} else {
				m.imports[r.Local] = r
			}

		case Star:
			switch r.Kind {
			case StarImportAllAs:
				m.imports[r.Binding] = r
			case StarReExportAllAs:
				m.reexports[r.Binding] = r
			case StarReExportAll:
				m.stars = append(m.stars, r)
			}

		case Usage:
			m.usages[r.From] = append(m.usages[r.From], r)

		case URL, Worker:
			m.dynamic = append(m.dynamic, r)
		}
	}
	return index
}
