package treeshaking

import (
	"github.com/evanw/packcore/internal/graph"
)

const nameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generates "a", "b", ..., "Z", "aa", "ab", ...
func shortName(index int) string {
	var bytes []byte
	for {
		bytes = append([]byte{nameChars[index%len(nameChars)]}, bytes...)
		index /= len(nameChars)
		if index == 0 {
			break
		}
		index--
	}
	return string(bytes)
}

// Gives used exports short names where nothing outside the bundle can
// observe them. Entry modules, bailouts and escaped namespace objects turned
// off "CanMangleUse" during analysis, so only the provider's and the
// consumers' flags are checked here. Names are assigned in sorted order so
// the result doesn't depend on map iteration.
func MangleExports(mg *graph.ModuleGraph, result *AnalyzeResult) {
	for _, m := range mg.Modules() {
		if !result.IncludeModuleIDs[m.Identifier] || result.BailoutModules[m.Identifier] != 0 {
			continue
		}
		if m.ExportsKind != graph.ExportsESM {
			continue
		}
		mangleExportsInfo(mg, m.Exports())
	}
}

func mangleExportsInfo(mg *graph.ModuleGraph, exportsID graph.ExportsInfoID) {
	exports := mg.OrderedExports(exportsID)

	// Names that stay as they are must not be handed out again
	reserved := make(map[string]bool)
	var candidates []*graph.ExportInfo
	for _, info := range exports {
		if info.Usage() == graph.UsageUnused {
			continue
		}
		if !info.Provided || info.Hidden || !info.CanMangle() || len(info.Name) <= 2 {
			reserved[info.Name] = true
			continue
		}
		candidates = append(candidates, info)
	}

	next := 0
	for _, info := range candidates {
		name := shortName(next)
		next++
		for reserved[name] {
			name = shortName(next)
			next++
		}
		info.SetUsedName(name)
		reserved[name] = true
	}
}
