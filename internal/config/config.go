package config

import (
	"fmt"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/packcore/internal/logger"
)

type OutputOptions struct {
	// Directory (or bucket prefix) that assets are written into
	Path string `mapstructure:"path" yaml:"path"`

	// Remove stale output before writing. The first build wipes the whole
	// directory, later builds only remove files that are no longer produced.
	Clean bool `mapstructure:"clean" yaml:"clean"`

	PublicPath string `mapstructure:"publicPath" yaml:"publicPath"`
}

type Options struct {
	Context string `mapstructure:"context" yaml:"context"`

	// Entry name => request. Each entry becomes one chunk whose runtime has
	// the same name.
	Entry map[string]string `mapstructure:"entry" yaml:"entry"`

	Output OutputOptions `mapstructure:"output" yaml:"output"`

	TreeShaking   bool `mapstructure:"treeShaking" yaml:"treeShaking"`
	SideEffects   bool `mapstructure:"sideEffects" yaml:"sideEffects"`
	MangleExports bool `mapstructure:"mangleExports" yaml:"mangleExports"`

	// If false, the emitted version table is never populated and every build
	// rewrites every asset.
	IncrementalRebuildEmitAsset bool `mapstructure:"incrementalRebuildEmitAsset" yaml:"incrementalRebuildEmitAsset"`

	LibraryTypes []string `mapstructure:"libraryTypes" yaml:"libraryTypes"`

	// Glob patterns (doublestar syntax) matched against module identifiers.
	// Matching modules have no side effects of their own.
	SideEffectsFree []string `mapstructure:"sideEffectsFree" yaml:"sideEffectsFree"`

	WorkerSyntax []string `mapstructure:"workerSyntax" yaml:"workerSyntax"`

	ResolverCacheSize int `mapstructure:"resolverCacheSize" yaml:"resolverCacheSize"`
	Concurrency       int `mapstructure:"concurrency" yaml:"concurrency"`
}

var DefaultWorkerSyntax = []string{"Worker", "SharedWorker", "Worker from worker_threads"}

const DefaultResolverCacheSize = 1024

var knownLibraryTypes = map[string]bool{
	"var":               true,
	"module":            true,
	"commonjs":          true,
	"commonjs2":         true,
	"commonjs-static":   true,
	"umd":               true,
	"amd":               true,
	"system":            true,
	"assign":            true,
	"global":            true,
	"window":            true,
	"this":              true,
	"self":              true,
	"jsonp":             true,
	"assign-properties": true,
}

// Fills in defaults for everything the caller left unset
func (options *Options) Normalize() {
	if options.Context == "" {
		options.Context = "."
	}
	if options.Output.Path == "" {
		options.Output.Path = "dist"
	}
	if options.WorkerSyntax == nil {
		options.WorkerSyntax = append([]string{}, DefaultWorkerSyntax...)
	}
	if options.ResolverCacheSize <= 0 {
		options.ResolverCacheSize = DefaultResolverCacheSize
	}
	if options.Concurrency <= 0 {
		options.Concurrency = runtime.GOMAXPROCS(0)
	}
}

// Validation problems are reported as diagnostics instead of a single error
// so that every problem is shown at once
func (options *Options) Validate(log logger.Log) {
	if len(options.Entry) == 0 {
		log.AddMsg(logger.Msg{Kind: logger.Error, Text: "No entry points were configured"})
	}
	for _, name := range options.EntryNames() {
		if strings.TrimSpace(options.Entry[name]) == "" {
			log.AddMsg(logger.Msg{Kind: logger.Error, Text: fmt.Sprintf("The entry %q has an empty request", name)})
		}
	}
	if options.Output.Path == "" {
		log.AddMsg(logger.Msg{Kind: logger.Error, Text: "The output path must not be empty"})
	}
	if options.Concurrency < 0 {
		log.AddMsg(logger.Msg{Kind: logger.Error, Text: fmt.Sprintf("Invalid concurrency %d", options.Concurrency)})
	}
	for _, pattern := range options.SideEffectsFree {
		if !doublestar.ValidatePattern(pattern) {
			log.AddMsg(logger.Msg{Kind: logger.Error, Text: fmt.Sprintf("Invalid side effects pattern %q", pattern)})
		}
	}
	for _, syntax := range options.WorkerSyntax {
		if strings.TrimSpace(syntax) == "" {
			log.AddMsg(logger.Msg{Kind: logger.Error, Text: "Worker syntax entries must not be empty"})
		}
	}
	for _, kind := range options.LibraryTypes {
		if !knownLibraryTypes[kind] {
			log.AddMsg(logger.Msg{Kind: logger.Warning, Text: fmt.Sprintf("Unknown library type %q", kind)})
		}
	}
}

// Libraries that keep their export shape still need export usage
// information, so these library types turn on the analysis by themselves
func (options *Options) IsTreeShakingEnabled() bool {
	if options.TreeShaking {
		return true
	}
	for _, kind := range options.LibraryTypes {
		if kind == "module" || kind == "commonjs-static" {
			return true
		}
	}
	return false
}

// Only the closure computed by the analyzer is emitted when this is true.
// Otherwise every module that was built ends up in the output.
func (options *Options) IsModuleInclusionPruned() bool {
	return options.TreeShaking && options.SideEffects
}

func (options *Options) IsSideEffectFree(identifier string) bool {
	identifier = path.Clean(strings.TrimPrefix(identifier, "./"))
	for _, pattern := range options.SideEffectsFree {
		if ok, _ := doublestar.Match(pattern, identifier); ok {
			return true
		}
	}
	return false
}

// Entry names in a deterministic order
func (options *Options) EntryNames() []string {
	names := make([]string, 0, len(options.Entry))
	for name := range options.Entry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
