package template

import (
	"sort"
	"strings"

	"github.com/evanw/packcore/internal/helpers"
)

type InitFragmentStage uint8

const (
	StageConstants InitFragmentStage = iota
	StageHarmonyExports
	StageHarmonyImports
	StageProvides
)

// Code emitted before a module's body. Fragments with the same non-empty key
// are emitted once. If the fragment implements "MergeableInitFragment", the
// fragments are merged instead.
type InitFragment interface {
	Key() string
	Stage() InitFragmentStage
	Position() int
	Content() string
}

type MergeableInitFragment interface {
	InitFragment
	Merge(other InitFragment) InitFragment
}

type NormalInitFragment struct {
	content  string
	stage    InitFragmentStage
	position int
	key      string
}

func NewInitFragment(content string, stage InitFragmentStage, position int, key string) *NormalInitFragment {
	return &NormalInitFragment{content: content, stage: stage, position: position, key: key}
}

func (f *NormalInitFragment) Key() string              { return f.key }
func (f *NormalInitFragment) Stage() InitFragmentStage { return f.stage }
func (f *NormalInitFragment) Position() int            { return f.position }
func (f *NormalInitFragment) Content() string          { return f.content }

type ExportBinding struct {
	Name  string
	Value string
}

// Collects export getters for one exports object into a single
// definePropertyGetters call. A name is only ever defined once per exports
// object; the first binding registered for it wins.
type HarmonyExportInitFragment struct {
	ExportsArgument string
	Exports         []ExportBinding
}

func NewHarmonyExportInitFragment(exportsArgument string, exports ...ExportBinding) *HarmonyExportInitFragment {
	f := &HarmonyExportInitFragment{ExportsArgument: exportsArgument}
	f.add(exports)
	return f
}

func (f *HarmonyExportInitFragment) add(exports []ExportBinding) {
	for _, export := range exports {
		duplicate := false
		for _, existing := range f.Exports {
			if existing.Name == export.Name {
				duplicate = true
				break
			}
		}
		if !duplicate {
			f.Exports = append(f.Exports, export)
		}
	}
}

func (f *HarmonyExportInitFragment) Key() string              { return "harmony exports " + f.ExportsArgument }
func (f *HarmonyExportInitFragment) Stage() InitFragmentStage { return StageHarmonyExports }
func (f *HarmonyExportInitFragment) Position() int            { return 1 }

func (f *HarmonyExportInitFragment) Merge(other InitFragment) InitFragment {
	merged := &HarmonyExportInitFragment{ExportsArgument: f.ExportsArgument}
	merged.add(f.Exports)
	if o, ok := other.(*HarmonyExportInitFragment); ok {
		merged.add(o.Exports)
	}
	return merged
}

func (f *HarmonyExportInitFragment) Content() string {
	if len(f.Exports) == 0 {
		return ""
	}
	exports := append([]ExportBinding{}, f.Exports...)
	sort.SliceStable(exports, func(i int, j int) bool {
		return exports[i].Name < exports[j].Name
	})
	definitions := make([]string, len(exports))
	for i, export := range exports {
		definitions[i] = "/* harmony export */   " + Quote(export.Name) + ": () => (" + export.Value + ")"
	}
	return "/* harmony export */ __webpack_require__.d(" + f.ExportsArgument + ", {\n" +
		strings.Join(definitions, ",\n") +
		"\n/* harmony export */ });\n"
}

// Sorts fragments by stage and position, merges fragments that share a key,
// and puts the result in front of the module body
func RenderInitFragments(fragments []InitFragment, body string) string {
	sorted := append([]InitFragment{}, fragments...)
	sort.SliceStable(sorted, func(i int, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Stage() != b.Stage() {
			return a.Stage() < b.Stage()
		}
		return a.Position() < b.Position()
	})

	var result []InitFragment
	keyed := make(map[string]int)
	for _, fragment := range sorted {
		key := fragment.Key()
		if key == "" {
			result = append(result, fragment)
			continue
		}
		index, ok := keyed[key]
		if !ok {
			keyed[key] = len(result)
			result = append(result, fragment)
			continue
		}
		if mergeable, ok := result[index].(MergeableInitFragment); ok {
			result[index] = mergeable.Merge(fragment)
		}
	}

	j := helpers.Joiner{}
	for _, fragment := range result {
		j.AddString(fragment.Content())
	}
	j.AddString(body)
	return j.String()
}
