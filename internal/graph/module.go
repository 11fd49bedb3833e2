package graph

import "github.com/evanw/packcore/internal/logger"

type ModuleIdentifier string

type ExportsKind uint8

const (
	// The module has no import or export syntax
	ExportsNone ExportsKind = iota

	ExportsCommonJS
	ExportsESM
)

type Module struct {
	Identifier ModuleIdentifier
	Source     logger.Source

	// In source order. A dependency's position in this slice is the index
	// part of its id.
	Dependencies []Dependency

	ExportsKind ExportsKind

	// The module's own code has no side effects. Whether evaluating it has
	// side effects still depends on what it imports.
	SideEffectFree bool

	// Changes whenever the module's source or dependencies change
	BuildHash string

	exports ExportsInfoID
}

func (m *Module) Exports() ExportsInfoID {
	return m.exports
}

func (m *Module) ExportsArgument() string {
	return "__webpack_exports__"
}

func (m *Module) ModuleArgument() string {
	return "module"
}
