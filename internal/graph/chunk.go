package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/evanw/packcore/internal/ast"
)

// A sorted set of runtime names
type RuntimeSpec []string

func MakeRuntimeSpec(names ...string) RuntimeSpec {
	seen := make(map[string]bool, len(names))
	spec := make(RuntimeSpec, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			spec = append(spec, name)
		}
	}
	sort.Strings(spec)
	return spec
}

func (r RuntimeSpec) String() string {
	return strings.Join(r, "+")
}

type ChunkUkey struct {
	ast.Index32
}

type Chunk struct {
	Name     string
	Filename string
	Runtime  RuntimeSpec

	// The module started when the chunk is loaded
	EntryModule ModuleIdentifier

	// Sorted by identifier
	Modules []ModuleIdentifier

	IsWorker bool
}

type ChunkGraph struct {
	chunks       []*Chunk
	moduleIDs    map[ModuleIdentifier]string
	runtimeIDs   map[string]string
	workerChunks map[DependencyID]ChunkUkey
}

func NewChunkGraph() *ChunkGraph {
	return &ChunkGraph{
		moduleIDs:    make(map[ModuleIdentifier]string),
		runtimeIDs:   make(map[string]string),
		workerChunks: make(map[DependencyID]ChunkUkey),
	}
}

func (cg *ChunkGraph) AddChunk(chunk *Chunk) ChunkUkey {
	ukey := ChunkUkey{ast.MakeIndex32(uint32(len(cg.chunks)))}
	cg.chunks = append(cg.chunks, chunk)
	return ukey
}

func (cg *ChunkGraph) Chunk(ukey ChunkUkey) *Chunk {
	if !ukey.IsValid() || int(ukey.GetIndex()) >= len(cg.chunks) {
		panic(InvariantError{Text: "invalid chunk handle"})
	}
	return cg.chunks[ukey.GetIndex()]
}

func (cg *ChunkGraph) Chunks() []ChunkUkey {
	ukeys := make([]ChunkUkey, len(cg.chunks))
	for i := range cg.chunks {
		ukeys[i] = ChunkUkey{ast.MakeIndex32(uint32(i))}
	}
	return ukeys
}

func (cg *ChunkGraph) SetModuleID(module ModuleIdentifier, id string) {
	cg.moduleIDs[module] = id
}

func (cg *ChunkGraph) ModuleID(module ModuleIdentifier) (string, bool) {
	id, ok := cg.moduleIDs[module]
	return id, ok
}

// Like "ModuleID" but a missing id is a bug in the caller
func (cg *ChunkGraph) MustModuleID(module ModuleIdentifier) string {
	id, ok := cg.moduleIDs[module]
	if !ok {
		panic(InvariantError{Text: fmt.Sprintf("module %q has no id", module)})
	}
	return id
}

func (cg *ChunkGraph) SetRuntimeID(runtime string, id string) {
	cg.runtimeIDs[runtime] = id
}

func (cg *ChunkGraph) RuntimeID(runtime string) (string, bool) {
	id, ok := cg.runtimeIDs[runtime]
	return id, ok
}

func (cg *ChunkGraph) ConnectWorkerChunk(dep DependencyID, chunk ChunkUkey) {
	cg.workerChunks[dep] = chunk
}

func (cg *ChunkGraph) WorkerChunk(dep DependencyID) (ChunkUkey, bool) {
	ukey, ok := cg.workerChunks[dep]
	return ukey, ok
}
