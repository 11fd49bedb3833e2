package graph

// Describes what a dependency exposes on its owning module. A nil
// *ExportsSpec means "nothing". When "Unknown" is true the set of names can't
// be determined statically and "Exports" is ignored.
type ExportsSpec struct {
	Exports []ExportNameOrSpec
	Unknown bool

	Priority        *uint8
	CanMangle       *bool
	TerminalBinding *bool

	// The connection these exports were derived from, for re-exports
	From *ModuleGraphConnection

	// Modules whose exports this spec depends on. Changes to their exports
	// require flagging this module again.
	Dependencies []ModuleIdentifier

	// Names that exist but are not visible from the outside
	HideExports []string

	// Names that are not provided by this spec even if "Unknown" is true
	ExcludeExports []string
}

// Exactly one of the two fields is set
type ExportNameOrSpec struct {
	Name string
	Spec *ExportSpec
}

func ExportName(name string) ExportNameOrSpec {
	return ExportNameOrSpec{Name: name}
}

func ExportOf(spec *ExportSpec) ExportNameOrSpec {
	return ExportNameOrSpec{Spec: spec}
}

func (e ExportNameOrSpec) ExportName() string {
	if e.Spec != nil {
		return e.Spec.Name
	}
	return e.Name
}

type ExportSpec struct {
	Name string

	// The export path inside the "From" module. A nil path means the same
	// name as "Name". If "Namespace" is true the export is the target's whole
	// namespace object instead.
	Export    []string
	Namespace bool

	// Nested exports of an object-valued export
	Exports []ExportNameOrSpec

	CanMangle       *bool
	TerminalBinding *bool
	Priority        *uint8
	Hidden          *bool
	From            *ModuleGraphConnection
}

func Ptr[T any](v T) *T {
	return &v
}

func valueOr[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}
