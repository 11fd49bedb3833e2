package treeshaking

import (
	"fmt"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
)

// Applies the exports spec of every dependency to the exports table of the
// module that owns it. Star re-exports provide whatever their target
// provides, so this repeats until no table changes.
//
// When two dependencies claim the same name the one with the higher priority
// wins. With equal priority the first claim is kept, the name is marked
// ambiguous and a warning is logged.
func FlagExports(log logger.Log, mg *graph.ModuleGraph) {
	for {
		changed := false
		for _, m := range mg.Modules() {
			for _, dep := range m.Dependencies {
				spec := dep.Exports(mg)
				if spec == nil {
					continue
				}
				if flagExportsSpec(log, mg, m, dep.ID(), spec) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func flagExportsSpec(log logger.Log, mg *graph.ModuleGraph, m *graph.Module, dep graph.DependencyID, spec *graph.ExportsSpec) bool {
	exportsID := m.Exports()
	exports := mg.ExportsInfo(exportsID)
	changed := false

	if spec.Unknown && !exports.UnknownProvided {
		exports.UnknownProvided = true
		other := mg.ExportInfo(exports.OtherExports)
		other.Provided = true
		other.CanMangleProvide = false
		changed = true
	}

	for _, name := range spec.HideExports {
		info := mg.GetOrCreateExportInfo(exportsID, name)
		if !info.Hidden {
			info.Hidden = true
			changed = true
		}
	}

	for _, item := range spec.Exports {
		if flagExport(log, mg, m, exportsID, dep, spec, item) {
			changed = true
		}
	}
	return changed
}

func flagExport(
	log logger.Log,
	mg *graph.ModuleGraph,
	m *graph.Module,
	exportsID graph.ExportsInfoID,
	dep graph.DependencyID,
	spec *graph.ExportsSpec,
	item graph.ExportNameOrSpec,
) bool {
	name := item.ExportName()
	priority := valueOr(spec.Priority, 0)
	terminal := valueOr(spec.TerminalBinding, false)
	canMangle := valueOr(spec.CanMangle, true)
	hidden := false
	from := spec.From
	var target []string
	if from != nil {
		target = []string{name}
	}

	if s := item.Spec; s != nil {
		priority = valueOr(s.Priority, priority)
		terminal = valueOr(s.TerminalBinding, terminal)
		canMangle = valueOr(s.CanMangle, canMangle)
		hidden = valueOr(s.Hidden, false)
		if s.From != nil {
			from = s.From
		}
		switch {
		case s.Namespace:
			target = nil
		case s.Export != nil:
			target = s.Export
		case from != nil:
			target = []string{name}
		}
	}

	info := mg.GetOrCreateExportInfo(exportsID, name)
	claim := func() {
		info.Provided = true
		info.Priority = priority
		info.TerminalBinding = terminal
		info.CanMangleProvide = canMangle
		info.Hidden = info.Hidden || hidden
		info.Target = dep
		info.HasTarget = true
		info.TargetConnection = from
		info.TargetExport = target
		info.Ambiguous = false
	}

	changed := false
	switch {
	case !info.Provided || !info.HasTarget:
		claim()
		changed = true

	case info.Target == dep:
		// A dependency may report the same name again on every round

	case priority > info.Priority:
		claim()
		changed = true

	case priority == info.Priority && !info.Ambiguous:
		info.Ambiguous = true
		changed = true
		log.AddWarning(&m.Source, logger.Range{}, fmt.Sprintf(
			"The export %q is provided by both %s and %s (the first one is used)", name, info.Target, dep))
	}

	if s := item.Spec; s != nil && len(s.Exports) > 0 && info.Target == dep {
		nested := mg.NestedExportsInfo(info)
		nestedSpec := &graph.ExportsSpec{Priority: &priority, TerminalBinding: &terminal, CanMangle: &canMangle}
		for _, child := range s.Exports {
			if flagExport(log, mg, m, nested, dep, nestedSpec, child) {
				changed = true
			}
		}
	}
	return changed
}

func valueOr[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}
