package graph

import (
	"sort"

	"github.com/evanw/packcore/internal/ast"
)

// The ordering matters: a state may only move to a greater value during one
// analysis pass
type UsageState uint8

const (
	UsageUnused UsageState = iota
	UsageOnlyPropertiesUsed
	UsageNoInfo
	UsageUsed
)

func (s UsageState) String() string {
	switch s {
	case UsageUnused:
		return "unused"
	case UsageOnlyPropertiesUsed:
		return "only-properties-used"
	case UsageNoInfo:
		return "no-info"
	default:
		return "used"
	}
}

type ExportInfoID struct {
	ast.Index32
}

type ExportsInfoID struct {
	ast.Index32
}

type ExportInfo struct {
	Name string

	// Whether some dependency declares this name. Names that are only
	// referenced (e.g. imports of a missing export) are not provided.
	Provided bool

	CanMangleProvide bool
	CanMangleUse     bool
	TerminalBinding  bool
	Hidden           bool

	// Two different dependencies claimed this name with the same priority
	Ambiguous bool

	Priority uint8

	// The dependency that won the name. For re-exports "TargetConnection" is
	// the connection the value comes from and "TargetExport" is the path
	// inside the target module (nil for the namespace object).
	Target           DependencyID
	HasTarget        bool
	TargetConnection *ModuleGraphConnection
	TargetExport     []string

	// Exports of an object-valued export, if they are known
	Exports ExportsInfoID

	usage    UsageState
	usedName string
}

func (info *ExportInfo) Usage() UsageState {
	return info.usage
}

// Returns true if the state changed. Usage can only escalate.
func (info *ExportInfo) SetUsed(state UsageState) bool {
	if state > info.usage {
		info.usage = state
		return true
	}
	return false
}

func (info *ExportInfo) CanMangle() bool {
	return info.CanMangleProvide && info.CanMangleUse
}

func (info *ExportInfo) SetUsedName(name string) {
	info.usedName = name
}

// The name the export has in generated code
func (info *ExportInfo) UsedName() string {
	if info.usedName != "" {
		return info.usedName
	}
	return info.Name
}

type ExportsInfo struct {
	Module  ModuleIdentifier
	exports map[string]ExportInfoID

	// Stands in for every name that isn't listed explicitly
	OtherExports ExportInfoID

	// Set when some dependency declared exports that can't be known
	// statically
	UnknownProvided bool
}

func (mg *ModuleGraph) newExportsInfo(module ModuleIdentifier) ExportsInfoID {
	other := mg.newExportInfo("")
	id := ExportsInfoID{ast.MakeIndex32(uint32(len(mg.exportsInfos)))}
	mg.exportsInfos = append(mg.exportsInfos, &ExportsInfo{
		Module:       module,
		exports:      make(map[string]ExportInfoID),
		OtherExports: other,
	})
	return id
}

func (mg *ModuleGraph) newExportInfo(name string) ExportInfoID {
	id := ExportInfoID{ast.MakeIndex32(uint32(len(mg.exportInfos)))}
	mg.exportInfos = append(mg.exportInfos, &ExportInfo{
		Name:             name,
		CanMangleProvide: true,
		CanMangleUse:     true,
		usage:            UsageNoInfo,
	})
	return id
}

func (mg *ModuleGraph) ExportsInfo(id ExportsInfoID) *ExportsInfo {
	if !id.IsValid() {
		panic(InvariantError{Text: "invalid exports info handle"})
	}
	return mg.exportsInfos[id.GetIndex()]
}

func (mg *ModuleGraph) ExportInfo(id ExportInfoID) *ExportInfo {
	if !id.IsValid() {
		panic(InvariantError{Text: "invalid export info handle"})
	}
	return mg.exportInfos[id.GetIndex()]
}

func (mg *ModuleGraph) ExportsInfoOfModule(module ModuleIdentifier) ExportsInfoID {
	if m, ok := mg.modules[module]; ok {
		return m.exports
	}
	return ExportsInfoID{}
}

// Returns the export with this exact name, if one was ever created
func (mg *ModuleGraph) LookupExport(exports ExportsInfoID, name string) (*ExportInfo, bool) {
	id, ok := mg.ExportsInfo(exports).exports[name]
	if !ok {
		return nil, false
	}
	return mg.ExportInfo(id), true
}

func (mg *ModuleGraph) GetOrCreateExportInfo(exports ExportsInfoID, name string) *ExportInfo {
	info := mg.ExportsInfo(exports)
	if id, ok := info.exports[name]; ok {
		return mg.ExportInfo(id)
	}
	id := mg.newExportInfo(name)
	info.exports[name] = id
	return mg.ExportInfo(id)
}

// Returns the nested exports table of an export, creating it on demand
func (mg *ModuleGraph) NestedExportsInfo(info *ExportInfo) ExportsInfoID {
	if !info.Exports.IsValid() {
		info.Exports = mg.newExportsInfo("")
	}
	return info.Exports
}

// Export names in sorted order
func (mg *ModuleGraph) ExportNames(exports ExportsInfoID) []string {
	info := mg.ExportsInfo(exports)
	names := make([]string, 0, len(info.exports))
	for name := range info.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exports in name order followed by the "other exports" record
func (mg *ModuleGraph) OrderedExports(exports ExportsInfoID) []*ExportInfo {
	names := mg.ExportNames(exports)
	result := make([]*ExportInfo, 0, len(names))
	for _, name := range names {
		info, _ := mg.LookupExport(exports, name)
		result = append(result, info)
	}
	return result
}

// Usage of one name, falling back to the "other exports" record for names
// that were never created
func (mg *ModuleGraph) ExportUsage(exports ExportsInfoID, name string) UsageState {
	if info, ok := mg.LookupExport(exports, name); ok {
		return info.Usage()
	}
	return mg.ExportInfo(mg.ExportsInfo(exports).OtherExports).Usage()
}

func (mg *ModuleGraph) IsAnyExportUsed(exports ExportsInfoID) bool {
	info := mg.ExportsInfo(exports)
	if mg.ExportInfo(info.OtherExports).Usage() != UsageUnused {
		return true
	}
	for _, id := range info.exports {
		if mg.ExportInfo(id).Usage() != UsageUnused {
			return true
		}
	}
	return false
}

// Resolves the names an export path has in generated code. The second return
// value is false if the export is proven unused, in which case nothing should
// be emitted for it.
//
// Usage is computed once for all runtimes. The runtime is accepted so that
// callers don't need to change if that ever becomes runtime-specific.
func (mg *ModuleGraph) GetUsedName(exports ExportsInfoID, runtime RuntimeSpec, names []string) ([]string, bool) {
	if len(names) == 0 {
		return names, true
	}
	info, ok := mg.LookupExport(exports, names[0])
	if !ok {
		other := mg.ExportInfo(mg.ExportsInfo(exports).OtherExports)
		if other.Usage() == UsageUnused {
			return nil, false
		}
		return names, true
	}
	if info.Usage() == UsageUnused {
		return nil, false
	}
	used := []string{info.UsedName()}
	if len(names) == 1 {
		return used, true
	}
	if info.Exports.IsValid() && info.Usage() == UsageOnlyPropertiesUsed {
		rest, ok := mg.GetUsedName(info.Exports, runtime, names[1:])
		if !ok {
			return nil, false
		}
		return append(used, rest...), true
	}
	return append(used, names[1:]...), true
}

// Puts every export of every module back to "unused" before an analysis
// pass. This is the only way usage ever decreases.
func (mg *ModuleGraph) ResetUsage() {
	for _, info := range mg.exportInfos {
		info.usage = UsageUnused
		info.CanMangleUse = true
		info.usedName = ""
	}
}

// A stable fingerprint of the usage information of one exports table. This
// goes into code generation cache keys.
func (mg *ModuleGraph) UsageSignature(exports ExportsInfoID) string {
	sb := []byte{}
	var visit func(id ExportsInfoID)
	visit = func(id ExportsInfoID) {
		info := mg.ExportsInfo(id)
		sb = append(sb, byte('0'+mg.ExportInfo(info.OtherExports).Usage()))
		for _, export := range mg.OrderedExports(id) {
			sb = append(sb, ' ')
			sb = append(sb, export.Name...)
			sb = append(sb, '=')
			sb = append(sb, byte('0'+export.Usage()))
			if export.usedName != "" {
				sb = append(sb, ':')
				sb = append(sb, export.usedName...)
			}
			if export.Exports.IsValid() {
				sb = append(sb, '{')
				visit(export.Exports)
				sb = append(sb, '}')
			}
		}
	}
	visit(exports)
	return string(sb)
}
