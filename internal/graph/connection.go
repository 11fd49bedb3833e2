package graph

// Connection states are boolean-like but carry two extra values that come up
// while walking import cycles. Only "ConnectionInactive" is falsy.
type ConnectionState uint8

const (
	ConnectionInactive ConnectionState = iota

	// The connection doesn't need the target module itself, but it must still
	// be followed to reach other modules
	ConnectionTransitiveOnly

	// The state depends on a module that is currently being evaluated
	ConnectionCircular

	ConnectionActive
)

func BoolConnectionState(active bool) ConnectionState {
	if active {
		return ConnectionActive
	}
	return ConnectionInactive
}

func (s ConnectionState) IsActive() bool {
	return s != ConnectionInactive
}

func (s ConnectionState) String() string {
	switch s {
	case ConnectionInactive:
		return "inactive"
	case ConnectionTransitiveOnly:
		return "transitive-only"
	case ConnectionCircular:
		return "circular"
	default:
		return "active"
	}
}

func AddConnectionStates(a ConnectionState, b ConnectionState) ConnectionState {
	if a == ConnectionActive || b == ConnectionActive {
		return ConnectionActive
	}
	if a == ConnectionInactive {
		return b
	}
	if b == ConnectionInactive {
		return a
	}
	if a == ConnectionTransitiveOnly {
		return b
	}
	if b == ConnectionTransitiveOnly {
		return a
	}
	return a
}

// Conditions are evaluated lazily. They usually depend on export usage that
// is still being computed, so the analyzer re-evaluates them until nothing
// changes.
type DependencyCondition interface {
	Evaluate(conn *ModuleGraphConnection, runtime RuntimeSpec, mg *ModuleGraph) ConnectionState
}

// A condition that never activates its connection
type ConditionFalse struct{}

func (ConditionFalse) Evaluate(*ModuleGraphConnection, RuntimeSpec, *ModuleGraph) ConnectionState {
	return ConnectionInactive
}

type ConnectionID struct {
	index uint32
}

func (id ConnectionID) GetIndex() uint32 {
	return id.index
}

type ModuleGraphConnection struct {
	ID         ConnectionID
	Dependency DependencyID

	// This is empty for connections created by entry dependencies
	OriginModule ModuleIdentifier

	Module    ModuleIdentifier
	Condition DependencyCondition
}

func (c *ModuleGraphConnection) ActiveState(runtime RuntimeSpec, mg *ModuleGraph) ConnectionState {
	if c.Condition == nil {
		return ConnectionActive
	}
	return c.Condition.Evaluate(c, runtime, mg)
}
