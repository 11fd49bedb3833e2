// Package manifest describes a module graph in YAML. Each module lists its
// source, the dependencies a parser would have found in it (with the text
// they cover) and the symbol references for the usage analysis. A manifest
// is both the module factory and the resolver of a build, which makes it
// possible to drive the compiler without a JavaScript parser.
package manifest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/compiler"
	"github.com/evanw/packcore/internal/config"
	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/fs"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"gopkg.in/yaml.v3"
)

type Manifest struct {
	Modules map[string]*ModuleSpec `yaml:"modules"`

	// Module files are read relative to this directory
	dir     string
	fs      fs.FS
	fsCache *cache.FSCache

	workerSyntax dependency.WorkerSyntaxList
}

type ModuleSpec struct {
	// Exactly one of these is set
	Source string `yaml:"source"`
	File   string `yaml:"file"`

	// "esm", "commonjs" or "none". Defaults to "esm" if any dependency is ESM
	// syntax and to "none" otherwise.
	ExportsKind    string `yaml:"exportsKind"`
	SideEffectFree bool   `yaml:"sideEffectFree"`

	Deps []DepSpec `yaml:"deps"`
	Refs []RefSpec `yaml:"refs"`
}

// One dependency. Which fields are used depends on "Kind". The covered text
// is the "Nth" (1-based, default 1) occurrence of "Match" in the source.
type DepSpec struct {
	Kind        string   `yaml:"kind"`
	Request     string   `yaml:"request"`
	SourceOrder uint32   `yaml:"sourceOrder"`
	Match       string   `yaml:"match"`
	Nth         int      `yaml:"nth"`
	IDs         []string `yaml:"ids"`
	Namespace   bool     `yaml:"namespace"`
	Call        bool     `yaml:"call"`
	Name        string   `yaml:"name"`
	Value       string   `yaml:"value"`
	Decl        string   `yaml:"decl"`
	Callee      string   `yaml:"callee"`
	From        string   `yaml:"from"`
	Code        string   `yaml:"code"`
	Globals     []string `yaml:"globals"`
	Names       []string `yaml:"names"`
	CanMangle   bool     `yaml:"canMangle"`
	Unknown     bool     `yaml:"unknown"`

	// For "evaluated": the value type and, for regular expressions, the flags
	Type  string `yaml:"type"`
	Flags string `yaml:"flags"`
}

// One symbol reference. "Dep" is the index of the dependency in the same
// module that an import, re-export or dynamic reference goes through.
type RefSpec struct {
	Kind     string `yaml:"kind"`
	Local    string `yaml:"local"`
	Exported string `yaml:"exported"`
	Imported string `yaml:"imported"`
	Binding  string `yaml:"binding"`
	Member   string `yaml:"member"`
	From     string `yaml:"from"`
	Dep      *int   `yaml:"dep"`
}

type Options struct {
	// Where "file" entries are read from. Defaults to the real file system.
	FS      fs.FS
	FSCache *cache.FSCache

	// Defaults to "config.DefaultWorkerSyntax"
	WorkerSyntax *dependency.WorkerSyntaxList
}

// Reads a manifest file. Module files are relative to the manifest.
func Load(options Options, file string) (*Manifest, error) {
	options = withDefaults(options)
	contents, err := options.FSCache.ReadFile(options.FS, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(options, []byte(contents), path.Dir(file))
}

func Parse(options Options, contents []byte, dir string) (*Manifest, error) {
	options = withDefaults(options)
	workerSyntax := options.WorkerSyntax
	if workerSyntax == nil {
		list, err := dependency.ParseWorkerSyntax(config.DefaultWorkerSyntax)
		if err != nil {
			return nil, err
		}
		workerSyntax = &list
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(contents, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for _, id := range m.ModuleIDs() {
		spec := m.Modules[id]
		if spec == nil {
			return nil, fmt.Errorf("module %q is empty", id)
		}
		if spec.Source != "" && spec.File != "" {
			return nil, fmt.Errorf("module %q has both a source and a file", id)
		}
	}
	m.dir = dir
	m.fs = options.FS
	m.fsCache = options.FSCache
	m.workerSyntax = *workerSyntax
	return m, nil
}

func withDefaults(options Options) Options {
	if options.FS == nil {
		options.FS = fs.RealFS{}
	}
	if options.FSCache == nil {
		options.FSCache = &cache.MakeCacheSet().FSCache
	}
	return options
}

// Module identifiers in sorted order
func (m *Manifest) ModuleIDs() []string {
	ids := make([]string, 0, len(m.Modules))
	for id := range m.Modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Relative requests are joined with the importer's directory. Everything
// else is looked up as is. Entries have an empty importer.
func (m *Manifest) Resolve(ctx context.Context, importer graph.ModuleIdentifier, request string) (graph.ModuleIdentifier, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	id := request
	if strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../") || request == "." || request == ".." {
		id = path.Join(path.Dir(string(importer)), request)
	} else if strings.HasPrefix(request, "/") {
		id = path.Clean(strings.TrimPrefix(request, "/"))
	}
	if _, ok := m.Modules[id]; !ok {
		return "", false, nil
	}
	return graph.ModuleIdentifier(id), true, nil
}

func (m *Manifest) Create(ctx context.Context, id graph.ModuleIdentifier) (*compiler.FactoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, ok := m.Modules[string(id)]
	if !ok {
		return nil, fmt.Errorf("module %q is not in the manifest", id)
	}

	contents := spec.Source
	if spec.File != "" {
		var err error
		contents, err = m.fsCache.ReadFile(m.fs, path.Join(m.dir, spec.File))
		if err != nil {
			return nil, err
		}
	}

	module := &graph.Module{
		Identifier:     id,
		Source:         logger.Source{KeyPath: string(id), PrettyPath: string(id), Contents: contents},
		SideEffectFree: spec.SideEffectFree,
	}
	b := builder{manifest: m, module: module}
	for i, dep := range spec.Deps {
		d, err := b.dependency(uint32(i), dep)
		if err != nil {
			return nil, fmt.Errorf("module %q, dependency %d: %w", id, i, err)
		}
		module.Dependencies = append(module.Dependencies, d)
	}

	kind, err := exportsKind(spec)
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", id, err)
	}
	module.ExportsKind = kind

	refs, err := b.symbolRefs(spec.Refs)
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", id, err)
	}
	return &compiler.FactoryResult{Module: module, SymbolRefs: refs}, nil
}

func exportsKind(spec *ModuleSpec) (graph.ExportsKind, error) {
	switch spec.ExportsKind {
	case "esm":
		return graph.ExportsESM, nil
	case "commonjs":
		return graph.ExportsCommonJS, nil
	case "none":
		return graph.ExportsNone, nil
	case "":
		for _, dep := range spec.Deps {
			if strings.HasPrefix(dep.Kind, "esm-") {
				return graph.ExportsESM, nil
			}
		}
		return graph.ExportsNone, nil
	default:
		return 0, fmt.Errorf("unknown exports kind %q", spec.ExportsKind)
	}
}
