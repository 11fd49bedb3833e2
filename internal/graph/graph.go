package graph

import (
	"fmt"
)

// Internal-invariant violations panic with this value. These indicate a bug
// in the caller, not a problem with the input.
type InvariantError struct {
	Text string
}

func (e InvariantError) Error() string {
	return "internal error: " + e.Text
}

// The module graph is populated by a single writer during the "make" phase
// and is read-only while code is generated. Export usage is written by the
// analyzer only.
type ModuleGraph struct {
	modules     map[ModuleIdentifier]*Module
	moduleOrder []ModuleIdentifier

	dependencies map[DependencyID]Dependency

	connections            []*ModuleGraphConnection
	connectionByDependency map[DependencyID]ConnectionID
	outgoing               map[ModuleIdentifier][]ConnectionID
	incoming               map[ModuleIdentifier][]ConnectionID

	// Arenas indexed by ExportsInfoID and ExportInfoID
	exportsInfos []*ExportsInfo
	exportInfos  []*ExportInfo
}

func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		modules:                make(map[ModuleIdentifier]*Module),
		dependencies:           make(map[DependencyID]Dependency),
		connectionByDependency: make(map[DependencyID]ConnectionID),
		outgoing:               make(map[ModuleIdentifier][]ConnectionID),
		incoming:               make(map[ModuleIdentifier][]ConnectionID),
	}
}

func (mg *ModuleGraph) AddModule(m *Module) {
	if _, ok := mg.modules[m.Identifier]; ok {
		panic(InvariantError{Text: fmt.Sprintf("module %q was added twice", m.Identifier)})
	}
	m.exports = mg.newExportsInfo(m.Identifier)
	mg.modules[m.Identifier] = m
	mg.moduleOrder = append(mg.moduleOrder, m.Identifier)
	for _, dep := range m.Dependencies {
		mg.AddDependency(dep)
	}
}

func (mg *ModuleGraph) AddDependency(dep Dependency) {
	if _, ok := mg.dependencies[dep.ID()]; ok {
		panic(InvariantError{Text: fmt.Sprintf("dependency %s was added twice", dep.ID())})
	}
	mg.dependencies[dep.ID()] = dep
}

func (mg *ModuleGraph) Module(id ModuleIdentifier) (*Module, bool) {
	m, ok := mg.modules[id]
	return m, ok
}

// Modules in the order they were added
func (mg *ModuleGraph) Modules() []*Module {
	result := make([]*Module, len(mg.moduleOrder))
	for i, id := range mg.moduleOrder {
		result[i] = mg.modules[id]
	}
	return result
}

func (mg *ModuleGraph) ModuleCount() int {
	return len(mg.moduleOrder)
}

func (mg *ModuleGraph) Dependency(id DependencyID) (Dependency, bool) {
	dep, ok := mg.dependencies[id]
	return dep, ok
}

// Records that a module dependency resolved to "target". The dependency must
// already be registered.
func (mg *ModuleGraph) SetResolvedModule(origin ModuleIdentifier, dep Dependency, target ModuleIdentifier) *ModuleGraphConnection {
	if _, ok := mg.connectionByDependency[dep.ID()]; ok {
		panic(InvariantError{Text: fmt.Sprintf("dependency %s was resolved twice", dep.ID())})
	}
	var condition DependencyCondition
	if md, ok := dep.(ModuleDependency); ok {
		condition = md.Condition()
	}
	id := ConnectionID{index: uint32(len(mg.connections))}
	conn := &ModuleGraphConnection{
		ID:           id,
		Dependency:   dep.ID(),
		OriginModule: origin,
		Module:       target,
		Condition:    condition,
	}
	mg.connections = append(mg.connections, conn)
	mg.connectionByDependency[dep.ID()] = id
	mg.outgoing[origin] = append(mg.outgoing[origin], id)
	mg.incoming[target] = append(mg.incoming[target], id)
	return conn
}

func (mg *ModuleGraph) Connection(id ConnectionID) *ModuleGraphConnection {
	return mg.connections[id.index]
}

func (mg *ModuleGraph) ConnectionByDependency(id DependencyID) (*ModuleGraphConnection, bool) {
	if conn, ok := mg.connectionByDependency[id]; ok {
		return mg.connections[conn.index], true
	}
	return nil, false
}

func (mg *ModuleGraph) ModuleByDependency(id DependencyID) (*Module, bool) {
	if conn, ok := mg.ConnectionByDependency(id); ok {
		return mg.Module(conn.Module)
	}
	return nil, false
}

// Connections in the order their dependencies were resolved
func (mg *ModuleGraph) OutgoingConnections(module ModuleIdentifier) []*ModuleGraphConnection {
	return mg.resolveConnections(mg.outgoing[module])
}

func (mg *ModuleGraph) IncomingConnections(module ModuleIdentifier) []*ModuleGraphConnection {
	return mg.resolveConnections(mg.incoming[module])
}

func (mg *ModuleGraph) resolveConnections(ids []ConnectionID) []*ModuleGraphConnection {
	result := make([]*ModuleGraphConnection, len(ids))
	for i, id := range ids {
		result[i] = mg.connections[id.index]
	}
	return result
}

// Whether evaluating a module has observable side effects. Modules that are
// free of side effects themselves still have them if something they import
// does.
func (mg *ModuleGraph) ModuleSideEffectState(id ModuleIdentifier, visited map[ModuleIdentifier]bool) ConnectionState {
	m, ok := mg.modules[id]
	if !ok || !m.SideEffectFree {
		return ConnectionActive
	}
	if visited[id] {
		return ConnectionCircular
	}
	visited[id] = true
	current := ConnectionInactive
	for _, dep := range m.Dependencies {
		state := dep.SideEffectState(mg, visited)
		if state == ConnectionActive {
			return ConnectionActive
		}
		if state != ConnectionInactive {
			current = AddConnectionStates(current, state)
		}
	}
	return current
}
