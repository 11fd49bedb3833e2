package runtime

import "strings"

// The set of helper symbols generated code assumes the runtime-support layer
// provides. Templates add to this while a module is generated and the union
// over a chunk decides which runtime modules are synthesized.
type Globals uint64

const (
	Require Globals = 1 << iota
	Module
	Exports
	ModuleCache
	DefinePropertyGetters
	HasOwnProperty
	MakeNamespaceObject
	RuntimeID
	PublicPath
	BaseURI
)

var globalNames = []struct {
	flag Globals
	name string
}{
	{Require, "__webpack_require__"},
	{Module, "module"},
	{Exports, "__webpack_exports__"},
	{ModuleCache, "__webpack_require__.c"},
	{DefinePropertyGetters, "__webpack_require__.d"},
	{HasOwnProperty, "__webpack_require__.o"},
	{MakeNamespaceObject, "__webpack_require__.r"},
	{RuntimeID, "__webpack_require__.j"},
	{PublicPath, "__webpack_require__.p"},
	{BaseURI, "__webpack_require__.b"},
}

func (g Globals) Has(flags Globals) bool {
	return g&flags == flags
}

func (g *Globals) Insert(flags Globals) {
	*g |= flags
}

// The expression code uses to refer to a single global
func (g Globals) String() string {
	for _, entry := range globalNames {
		if entry.flag == g {
			return entry.name
		}
	}
	names := g.Names()
	return strings.Join(names, " | ")
}

// Looks up a single global by the expression code uses for it
func GlobalByName(name string) (Globals, bool) {
	for _, entry := range globalNames {
		if entry.name == name {
			return entry.flag, true
		}
	}
	return 0, false
}

func (g Globals) Names() []string {
	var names []string
	for _, entry := range globalNames {
		if g.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

// Adds the globals that the requested globals are implemented with
func (g Globals) WithDependencies() Globals {
	if g.Has(DefinePropertyGetters) {
		g |= HasOwnProperty
	}
	if g&(DefinePropertyGetters|HasOwnProperty|MakeNamespaceObject|RuntimeID|PublicPath|BaseURI|ModuleCache) != 0 {
		g |= Require
	}
	return g
}
