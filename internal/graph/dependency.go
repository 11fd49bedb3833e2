package graph

import "fmt"

// Dependency ids are derived from the owning module and the position of the
// dependency inside that module. Rebuilding unchanged source therefore
// produces the same ids, which lets cached results and the connection table
// be keyed on them.
type DependencyID struct {
	Module ModuleIdentifier
	Index  uint32
}

func MakeDependencyID(module ModuleIdentifier, index uint32) DependencyID {
	return DependencyID{Module: module, Index: index}
}

func (id DependencyID) String() string {
	return fmt.Sprintf("%s#%d", id.Module, id.Index)
}

type DependencyCategory uint8

const (
	CategoryUnknown DependencyCategory = iota
	CategoryEntry
	CategoryEsm
	CategoryCommonJS
	CategoryURL
	CategoryWorker
)

func (c DependencyCategory) String() string {
	switch c {
	case CategoryEntry:
		return "entry"
	case CategoryEsm:
		return "esm"
	case CategoryCommonJS:
		return "commonjs"
	case CategoryURL:
		return "url"
	case CategoryWorker:
		return "worker"
	default:
		return "unknown"
	}
}

type DependencyType uint8

const (
	TypeUnknown DependencyType = iota
	TypeEntry
	TypeEsmImport
	TypeEsmImportSpecifier
	TypeEsmExportSpecifier
	TypeEsmExportImportedSpecifier
	TypeEsmExportStar
	TypeEsmExportExpression
	TypeEsmCompatibility
	TypeCjsRequire
	TypeImportContext
	TypeNewURL
	TypeNewWorker
	TypeConst
	TypeRuntimeRequirements
	TypeStaticExports
)

var dependencyTypeNames = [...]string{
	TypeUnknown:                    "unknown",
	TypeEntry:                      "entry",
	TypeEsmImport:                  "esm import",
	TypeEsmImportSpecifier:         "esm import specifier",
	TypeEsmExportSpecifier:         "esm export specifier",
	TypeEsmExportImportedSpecifier: "esm export imported specifier",
	TypeEsmExportStar:              "esm export star",
	TypeEsmExportExpression:        "esm export expression",
	TypeEsmCompatibility:           "esm compatibility",
	TypeCjsRequire:                 "cjs require",
	TypeImportContext:              "import context",
	TypeNewURL:                     "new URL()",
	TypeNewWorker:                  "new Worker()",
	TypeConst:                      "const",
	TypeRuntimeRequirements:        "runtime requirements",
	TypeStaticExports:              "static exports",
}

func (t DependencyType) String() string {
	if int(t) < len(dependencyTypeNames) {
		return dependencyTypeNames[t]
	}
	return "unknown"
}

// A half-open byte range [Start, End) into the owning module's source
type Span struct {
	Start uint32
	End   uint32
}

// Every kind of graph edge implements this. The code generation half of the
// contract lives in the "template" package so that this package doesn't need
// to know about output text.
type Dependency interface {
	ID() DependencyID
	Category() DependencyCategory
	Type() DependencyType

	// The location of the reference in the owning module, if there is one
	Span() (Span, bool)

	DebugName() string

	// Describes the names this dependency makes available on its owning
	// module. Returning nil means the dependency doesn't export anything.
	Exports(mg *ModuleGraph) *ExportsSpec

	// Reports whether referencing this dependency alone forces some module to
	// be evaluated, independent of which exports are used. The visited set is
	// shared across one query to detect import cycles.
	SideEffectState(mg *ModuleGraph, visited map[ModuleIdentifier]bool) ConnectionState
}

// Dependencies that point at another module. The compiler resolves the
// request and records the result as a connection.
type ModuleDependency interface {
	Dependency
	Request() string

	// Returns nil if the connection is always active
	Condition() DependencyCondition
}
