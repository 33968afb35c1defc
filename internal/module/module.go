// Package module defines the units of configuration the engine composes:
// option declarations, prioritized option definitions, and the modules
// that carry them. A module's definitions may be produced by a deferred
// computation over the final configuration, which is how self-referential
// configuration is expressed.
package module

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/optpath"
	"grimm.is/moraine/internal/typesys"
)

// Priority ranks definitions by override strength; lower wins.
const (
	// PriorityForce always wins and suppresses conflict detection within
	// its own tier (first force definition by load order is kept). This is
	// a deliberate override escape hatch; use sparingly.
	PriorityForce = 50

	// PriorityNormal is the implicit priority of a plain definition.
	PriorityNormal = 100

	// PriorityDefault is the weakest explicit priority, for definitions
	// meant to be overridden by any plain definition.
	PriorityDefault = 1000

	// PriorityOptionDefault is the priority a declaration's default value
	// carries when it supplies the option's value. The default is a pure
	// fallback: it participates only when the option has no definitions.
	PriorityOptionDefault = 1500
)

// Origin identifies where a declaration or definition came from, for
// diagnostics.
type Origin struct {
	Module string // module name
	Source string // file:line or other locator, may be empty
}

// String renders the origin as "module (source)".
func (o Origin) String() string {
	if o.Source == "" {
		return o.Module
	}
	return fmt.Sprintf("%s (%s)", o.Module, o.Source)
}

// Declaration declares one typed option. At most one declaration may exist
// per path across the whole module set.
type Declaration struct {
	Path        optpath.Path
	Type        *typesys.Type
	Default     cty.Value // cty.NilVal when the option has no default
	Description string
	Origin      Origin
}

// Definition supplies one value for one option path. Many definitions may
// target the same path; they are merged by priority and type, not
// overwritten.
type Definition struct {
	Path     optpath.Path
	Value    cty.Value
	Priority int
	Origin   Origin
}

// View is a read-only lens over the (provisional or final) configuration,
// handed to deferred computations and assertion predicates. Reading a path
// that has not resolved yet yields an unknown value; the fixed-point
// evaluator re-runs the computation once more paths settle.
type View interface {
	// Value returns the current value at path, or an unknown value if the
	// path has not resolved yet. Paths outside the schema return NilVal.
	Value(path optpath.Path) cty.Value

	// Root returns the whole configuration tree as one nested object
	// value, with unknowns standing in for unresolved paths. Suitable as
	// an expression-evaluation scope.
	Root() cty.Value
}

// DynamicFunc is a deferred definition producer: it reads the provisional
// final configuration and contributes definitions to it. It is invoked
// once per fixed-point iteration and must be deterministic in its input.
type DynamicFunc func(view View) ([]Definition, error)

// Assertion is a consistency check deferred until after resolution. The
// condition must hold (evaluate true) on the final configuration; a false
// condition is a hard error carrying Message.
type Assertion struct {
	Name      string
	Message   string
	Origin    Origin
	Condition func(view View) (bool, error)
}

// Warning is an advisory check: when the condition evaluates true on the
// final configuration, Message is collected. Warnings never block.
type Warning struct {
	Name      string
	Message   string
	Origin    Origin
	Condition func(view View) (bool, error)
}

// Module is one unit of configuration: declarations plus definitions,
// optionally produced on demand from the final configuration. Ownership of
// a Module transfers to the evaluation run it is handed to; callers must
// not mutate it afterwards.
type Module struct {
	Name string

	// Requires lists module names that must be present in the same
	// evaluation. A missing requirement is a MissingDependency error.
	Requires []string

	Declarations []Declaration
	Definitions  []Definition

	// Dynamic, when set, contributes additional definitions computed from
	// the provisional final configuration (self-reference).
	Dynamic DynamicFunc

	Assertions []Assertion
	Warnings   []Warning
}
