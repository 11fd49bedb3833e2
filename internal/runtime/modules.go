package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/packcore/internal/graph"
)

// Runtime modules with a lower stage are rendered first
type Stage uint8

const (
	StageNormal Stage = iota
	StageBasic
	StageAttach
	StageTrigger
)

// A synthesized module providing some runtime global. Each instance belongs
// to exactly one chunk and renders itself from that chunk's runtime.
type RuntimeModule interface {
	Name() string
	Stage() Stage
	Attach(chunk graph.ChunkUkey)
	Generate(cg *graph.ChunkGraph) string
}

// Attaching a runtime module to a second chunk, or rendering it for a chunk
// with more than one runtime, panics with this value
type MultipleRuntimeError struct {
	Module  string
	Runtime graph.RuntimeSpec
}

func (e *MultipleRuntimeError) Error() string {
	return fmt.Sprintf("%s must be in a single runtime, got %q", e.Module, e.Runtime.String())
}

type attachment struct {
	name  string
	chunk graph.ChunkUkey
}

func (a *attachment) Name() string {
	return a.name
}

func (a *attachment) Attach(chunk graph.ChunkUkey) {
	if a.chunk.IsValid() && a.chunk != chunk {
		panic(&MultipleRuntimeError{Module: a.name})
	}
	a.chunk = chunk
}

func (a *attachment) runtime(cg *graph.ChunkGraph) string {
	if !a.chunk.IsValid() {
		panic(graph.InvariantError{Text: a.name + " was generated before being attached to a chunk"})
	}
	runtime := cg.Chunk(a.chunk).Runtime
	if len(runtime) != 1 {
		panic(&MultipleRuntimeError{Module: a.name, Runtime: runtime})
	}
	return runtime[0]
}

type DefinePropertyGettersRuntimeModule struct{ attachment }
type HasOwnPropertyRuntimeModule struct{ attachment }
type MakeNamespaceObjectRuntimeModule struct{ attachment }
type RuntimeIDRuntimeModule struct{ attachment }
type BaseURIRuntimeModule struct{ attachment }

type PublicPathRuntimeModule struct {
	attachment
	PublicPath string
}

func NewDefinePropertyGetters() *DefinePropertyGettersRuntimeModule {
	return &DefinePropertyGettersRuntimeModule{attachment{name: "webpack/runtime/define_property_getters"}}
}

func NewHasOwnProperty() *HasOwnPropertyRuntimeModule {
	return &HasOwnPropertyRuntimeModule{attachment{name: "webpack/runtime/has_own_property"}}
}

func NewMakeNamespaceObject() *MakeNamespaceObjectRuntimeModule {
	return &MakeNamespaceObjectRuntimeModule{attachment{name: "webpack/runtime/make_namespace_object"}}
}

func NewRuntimeID() *RuntimeIDRuntimeModule {
	return &RuntimeIDRuntimeModule{attachment{name: "webpack/runtime/runtime_id"}}
}

func NewPublicPath(publicPath string) *PublicPathRuntimeModule {
	return &PublicPathRuntimeModule{attachment: attachment{name: "webpack/runtime/public_path"}, PublicPath: publicPath}
}

func NewBaseURI() *BaseURIRuntimeModule {
	return &BaseURIRuntimeModule{attachment{name: "webpack/runtime/base_uri"}}
}

func (*DefinePropertyGettersRuntimeModule) Stage() Stage { return StageNormal }
func (*HasOwnPropertyRuntimeModule) Stage() Stage        { return StageNormal }
func (*MakeNamespaceObjectRuntimeModule) Stage() Stage   { return StageNormal }
func (*RuntimeIDRuntimeModule) Stage() Stage             { return StageNormal }
func (*PublicPathRuntimeModule) Stage() Stage            { return StageBasic }
func (*BaseURIRuntimeModule) Stage() Stage               { return StageAttach }

func (m *DefinePropertyGettersRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	m.runtime(cg)
	o := HasOwnProperty.String()
	return DefinePropertyGetters.String() + ` = function(exports, definition) {
	for(var key in definition) {
		if(` + o + `(definition, key) && !` + o + `(exports, key)) {
			Object.defineProperty(exports, key, { enumerable: true, get: definition[key] });
		}
	}
};`
}

func (m *HasOwnPropertyRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	m.runtime(cg)
	return HasOwnProperty.String() + ` = function(obj, prop) { return Object.prototype.hasOwnProperty.call(obj, prop); };`
}

func (m *MakeNamespaceObjectRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	m.runtime(cg)
	return MakeNamespaceObject.String() + ` = function(exports) {
	if(typeof Symbol !== 'undefined' && Symbol.toStringTag) {
		Object.defineProperty(exports, Symbol.toStringTag, { value: 'Module' });
	}
	Object.defineProperty(exports, '__esModule', { value: true });
};`
}

func (m *RuntimeIDRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	runtime := m.runtime(cg)
	id, ok := cg.RuntimeID(runtime)
	if !ok {
		id = runtime
	}
	return fmt.Sprintf("%s = %s;", RuntimeID, quote(id))
}

func (m *PublicPathRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	m.runtime(cg)
	return fmt.Sprintf("%s = %s;", PublicPath, quote(m.PublicPath))
}

func (m *BaseURIRuntimeModule) Generate(cg *graph.ChunkGraph) string {
	if strings.HasPrefix(m.runtime(cg), WorkerRuntimePrefix) {
		return BaseURI.String() + ` = self.location + "";`
	}
	return BaseURI.String() + ` = document.baseURI || self.location.href;`
}

// Runtimes of worker chunks start with this
const WorkerRuntimePrefix = "worker:"

func quote(text string) string {
	bytes, err := json.Marshal(text)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

// Creates fresh runtime modules for a chunk in rendering order. Callers must
// pass globals that already include their dependencies.
func ModulesForGlobals(globals Globals, publicPath string) []RuntimeModule {
	var modules []RuntimeModule
	if globals.Has(DefinePropertyGetters) {
		modules = append(modules, NewDefinePropertyGetters())
	}
	if globals.Has(HasOwnProperty) {
		modules = append(modules, NewHasOwnProperty())
	}
	if globals.Has(MakeNamespaceObject) {
		modules = append(modules, NewMakeNamespaceObject())
	}
	if globals.Has(RuntimeID) {
		modules = append(modules, NewRuntimeID())
	}
	if globals.Has(PublicPath) {
		modules = append(modules, NewPublicPath(publicPath))
	}
	if globals.Has(BaseURI) {
		modules = append(modules, NewBaseURI())
	}
	sortByStage(modules)
	return modules
}

func sortByStage(modules []RuntimeModule) {
	// Insertion sort keeps equal stages in their original order
	for i := 1; i < len(modules); i++ {
		for j := i; j > 0 && modules[j].Stage() < modules[j-1].Stage(); j-- {
			modules[j], modules[j-1] = modules[j-1], modules[j]
		}
	}
}
