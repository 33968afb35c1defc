// Package merge combines all definitions for one option path into a single
// value. Definitions are partitioned into priority tiers (lower number =
// stronger); for non-additive types the strongest populated tier wins
// outright, for additive types every tier contributes. Within a tier the
// option type's combine rule applies and irreconcilable values surface as
// Conflict diagnostics naming the contributing origins.
package merge

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/diag"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/typesys"
)

// Def is a definition tagged with its global load sequence. Load order is
// fixed and total across the module set, so tie-breaking (notably in the
// force tier) is reproducible run to run.
type Def struct {
	module.Definition
	Seq int
}

// Resolve merges defs for the declared option and returns the merged
// value. When the option has no definitions at all, the declaration's
// default supplies the value. On error the path's value is unresolved and
// the returned diagnostics describe why; other paths are unaffected.
func Resolve(decl module.Declaration, defs []Def) (cty.Value, diag.Diagnostics) {
	var diags diag.Diagnostics
	path := decl.Path.String()

	// The declaration default is a fallback, not a contribution: it
	// participates only when nothing defines the option. Otherwise an
	// additive fold would keep accumulating it alongside real definitions.
	all := make([]Def, 0, len(defs)+1)
	all = append(all, defs...)
	if len(defs) == 0 && decl.Default != cty.NilVal {
		all = append(all, Def{
			Definition: module.Definition{
				Path:     decl.Path,
				Value:    decl.Default,
				Priority: module.PriorityOptionDefault,
				Origin:   decl.Origin,
			},
		})
	}

	if len(all) == 0 {
		// Declared, never defined, no default. Not an error by itself:
		// the path simply has no value and downstream reads of it fail.
		return cty.NilVal, nil
	}

	// Validate every contribution eagerly so one pass reports all the
	// mistyped definitions for this path, not just the first.
	validated := make([]Def, 0, len(all))
	for _, d := range all {
		v, err := decl.Type.Validate(d.Value)
		if err != nil {
			td := diag.New(diag.TypeMismatch, path, "definition from %s: %v", d.Origin, err)
			td.Origins = []string{d.Origin.String()}
			td.Priorities = []int{d.Priority}
			diags = diags.Append(td)
			continue
		}
		d.Value = v
		validated = append(validated, d)
	}
	if diags.HasErrors() {
		return cty.NilVal, diags
	}

	// Stable order: strongest priority first, load order within a tier.
	sort.SliceStable(validated, func(i, j int) bool {
		if validated[i].Priority != validated[j].Priority {
			return validated[i].Priority < validated[j].Priority
		}
		return validated[i].Seq < validated[j].Seq
	})

	// The force tier short-circuits everything: the first force definition
	// by load order wins and disagreement within the tier is deliberately
	// not a conflict. The sort above already puts it first.
	if validated[0].Priority == module.PriorityForce {
		return validated[0].Value, nil
	}

	if decl.Type.Additive() {
		// Every tier contributes, strongest tier first, load order within.
		vals := make([]cty.Value, 0, len(validated))
		for _, d := range validated {
			vals = append(vals, d.Value)
		}
		merged, conflict := decl.Type.Combine(vals)
		if conflict != nil {
			diags = diags.Append(conflictDiag(path, validated, conflict))
			return cty.NilVal, diags
		}
		return merged, nil
	}

	// Non-additive: the strongest populated tier wins outright and weaker
	// tiers are discarded entirely.
	winning := validated[0].Priority
	tier := validated[:0:0]
	for _, d := range validated {
		if d.Priority != winning {
			break
		}
		tier = append(tier, d)
	}

	vals := make([]cty.Value, 0, len(tier))
	for _, d := range tier {
		vals = append(vals, d.Value)
	}
	merged, conflict := decl.Type.Combine(vals)
	if conflict != nil {
		diags = diags.Append(conflictDiag(path, tier, conflict))
		return cty.NilVal, diags
	}
	return merged, nil
}

// conflictDiag turns a same-tier combine failure into a Conflict
// diagnostic naming both contributing origins. Indexes in the conflict are
// aligned with defs.
func conflictDiag(path string, defs []Def, conflict *typesys.ConflictError) *diag.Diagnostic {
	a, b := defs[conflict.IndexA], defs[conflict.IndexB]
	d := diag.New(diag.Conflict, path, "%v (defined by %s and %s)", conflict, a.Origin, b.Origin)
	d.Origins = []string{a.Origin.String(), b.Origin.String()}
	d.Priorities = []int{a.Priority, b.Priority}
	return d
}
