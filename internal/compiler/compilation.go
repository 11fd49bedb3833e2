package compiler

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/config"
	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/treeshaking"
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

type AssetInfo struct {
	// Identifies the content. Assets whose version didn't change since the
	// last emission aren't written again.
	Version string

	// The chunk the asset was rendered from, if any
	ChunkName string
}

type Asset struct {
	Source []byte
	Info   AssetInfo
}

// The state of one build. Everything in here is discarded when the next
// build starts. Only the compiler's cache and its emitted version table
// outlive a compilation.
type Compilation struct {
	ID      uuid.UUID
	Options *config.Options

	ModuleGraph *graph.ModuleGraph
	ChunkGraph  *graph.ChunkGraph

	// Diagnostics for the user. These never stop a build on their own.
	Log logger.Log

	WorkerSyntax dependency.WorkerSyntaxList

	// Collected from the module factory while the graph is built
	SymbolRefs []treeshaking.SymbolRef

	// Nil if tree shaking is disabled
	Analysis *treeshaking.AnalyzeResult

	CodeGenResults map[graph.ModuleIdentifier]cache.CodeGenResult
	RuntimeModules map[graph.ChunkUkey][]runtime.RuntimeModule

	entryRequests map[string]string
	entries       map[string]graph.ModuleIdentifier
	included      map[graph.ModuleIdentifier]bool

	assets map[string]*Asset

	emittedMutex  sync.Mutex
	emittedAssets map[string]bool
	skippedAssets []string
}

func newCompilation(options *config.Options, workerSyntax dependency.WorkerSyntaxList) *Compilation {
	entryRequests := make(map[string]string, len(options.Entry))
	for name, request := range options.Entry {
		entryRequests[name] = request
	}
	return &Compilation{
		ID:             uuid.New(),
		Options:        options,
		ModuleGraph:    graph.NewModuleGraph(),
		ChunkGraph:     graph.NewChunkGraph(),
		Log:            logger.NewDeferLog(),
		WorkerSyntax:   workerSyntax,
		CodeGenResults: make(map[graph.ModuleIdentifier]cache.CodeGenResult),
		RuntimeModules: make(map[graph.ChunkUkey][]runtime.RuntimeModule),
		entryRequests:  entryRequests,
		entries:        make(map[string]graph.ModuleIdentifier),
		included:       make(map[graph.ModuleIdentifier]bool),
		assets:         make(map[string]*Asset),
		emittedAssets:  make(map[string]bool),
	}
}

// Adds or replaces an entry point. This only has an effect before the
// built-in part of the "make" phase runs, so call it from a "Make" hook.
func (c *Compilation) AddEntry(name string, request string) {
	c.entryRequests[name] = request
}

func (c *Compilation) entryNames() []string {
	names := make([]string, 0, len(c.entryRequests))
	for name := range c.entryRequests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// The module an entry resolved to
func (c *Compilation) Entry(name string) (graph.ModuleIdentifier, bool) {
	id, ok := c.entries[name]
	return id, ok
}

func (c *Compilation) IsModuleIncluded(id graph.ModuleIdentifier) bool {
	return c.included[id]
}

// Included modules sorted by identifier
func (c *Compilation) IncludedModules() []graph.ModuleIdentifier {
	ids := make([]graph.ModuleIdentifier, 0, len(c.included))
	for id := range c.included {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Adds an asset or replaces the asset with the same name. A missing version
// is computed from the content.
func (c *Compilation) EmitAsset(filename string, asset Asset) {
	if asset.Info.Version == "" {
		asset.Info.Version = contentVersion(asset.Source)
	}
	c.assets[filename] = &asset
}

func (c *Compilation) DeleteAsset(filename string) {
	delete(c.assets, filename)
}

func (c *Compilation) Asset(filename string) (*Asset, bool) {
	asset, ok := c.assets[filename]
	return asset, ok
}

// Asset filenames in sorted order
func (c *Compilation) Assets() []string {
	names := make([]string, 0, len(c.assets))
	for name := range c.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Compilation) markEmitted(filename string) {
	c.emittedMutex.Lock()
	defer c.emittedMutex.Unlock()
	c.emittedAssets[filename] = true
}

func (c *Compilation) markSkipped(filename string) {
	c.emittedMutex.Lock()
	defer c.emittedMutex.Unlock()
	c.skippedAssets = append(c.skippedAssets, filename)
}

// Filenames written by this build's emission phase, sorted
func (c *Compilation) EmittedAssets() []string {
	c.emittedMutex.Lock()
	defer c.emittedMutex.Unlock()
	names := make([]string, 0, len(c.emittedAssets))
	for name := range c.emittedAssets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Stats struct {
	CompilationID uuid.UUID
	Errors        []logger.Msg
	Warnings      []logger.Msg

	// Sorted
	EmittedAssets []string
	SkippedAssets []string
}

func (c *Compilation) stats() *Stats {
	msgs := c.Log.Done()
	skipped := append([]string{}, c.skippedAssets...)
	sort.Strings(skipped)
	return &Stats{
		CompilationID: c.ID,
		Errors:        logger.MsgsOfKind(logger.Error, msgs),
		Warnings:      logger.MsgsOfKind(logger.Warning, msgs),
		EmittedAssets: c.EmittedAssets(),
		SkippedAssets: skipped,
	}
}

func (s *Stats) HasErrors() bool {
	return len(s.Errors) > 0
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d error(s), %d warning(s), %d emitted, %d skipped",
		len(s.Errors), len(s.Warnings), len(s.EmittedAssets), len(s.SkippedAssets))
}

// Assets with the same version have the same content
func contentVersion(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:16])
}
