package dependency

import "github.com/evanw/packcore/internal/graph"

// Active while the owning module's export "name" is used
type exportUsedCondition struct {
	owner graph.ModuleIdentifier
	name  string
}

func (c exportUsedCondition) Evaluate(_ *graph.ModuleGraphConnection, _ graph.RuntimeSpec, mg *graph.ModuleGraph) graph.ConnectionState {
	exports := mg.ExportsInfoOfModule(c.owner)
	if !exports.IsValid() {
		return graph.ConnectionActive
	}
	return graph.BoolConnectionState(mg.ExportUsage(exports, c.name) != graph.UsageUnused)
}

// Active while any name the owning module got from this star re-export is
// used
type starReexportCondition struct {
	owner graph.ModuleIdentifier
	dep   graph.DependencyID
}

func (c starReexportCondition) Evaluate(_ *graph.ModuleGraphConnection, _ graph.RuntimeSpec, mg *graph.ModuleGraph) graph.ConnectionState {
	exports := mg.ExportsInfoOfModule(c.owner)
	if !exports.IsValid() {
		return graph.ConnectionActive
	}
	if mg.ExportInfo(mg.ExportsInfo(exports).OtherExports).Usage() != graph.UsageUnused {
		return graph.ConnectionActive
	}
	for _, info := range mg.OrderedExports(exports) {
		if info.HasTarget && info.Target == c.dep && info.Usage() != graph.UsageUnused {
			return graph.ConnectionActive
		}
	}
	return graph.ConnectionInactive
}
