package eval

import (
	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/diag"
	"grimm.is/moraine/internal/merge"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/optpath"
)

// schema is the frozen option space of one evaluation run: every declared
// option keyed by dotted path, plus the interior (submodule) prefixes
// above them. Read-only once built.
type schema struct {
	decls    map[string]module.Declaration
	order    []string        // declared paths in total path order
	interior map[string]bool // proper prefixes of declared paths
}

// buildSchema collects declarations from every module, detecting duplicate
// declarations and missing module dependencies. Load order is the input
// order; it is the total order every tie-break in the run derives from.
func buildSchema(mods []module.Module) (*schema, diag.Diagnostics) {
	var diags diag.Diagnostics

	present := make(map[string]bool, len(mods))
	for _, m := range mods {
		present[m.Name] = true
	}
	for _, m := range mods {
		for _, req := range m.Requires {
			if !present[req] {
				d := diag.New(diag.MissingDependency, "", "module %q requires module %q, which is not loaded", m.Name, req)
				diags = diags.Append(d)
			}
		}
	}

	sch := &schema{
		decls:    map[string]module.Declaration{},
		interior: map[string]bool{},
	}

	for _, m := range mods {
		for _, decl := range m.Declarations {
			key := decl.Path.String()
			if prev, exists := sch.decls[key]; exists {
				d := diag.New(diag.DuplicateDeclaration, key, "declared by both %s and %s", prev.Origin, decl.Origin)
				d.Origins = []string{prev.Origin.String(), decl.Origin.String()}
				diags = diags.Append(d)
				continue // first declaration wins for the rest of the run
			}
			sch.decls[key] = decl
			sch.order = append(sch.order, key)
		}
	}

	optpath.SortStrings(sch.order)

	for _, key := range sch.order {
		p := sch.decls[key].Path
		for parent, _ := p.Parent(); !parent.IsRoot(); parent, _ = parent.Parent() {
			sch.interior[parent.String()] = true
		}
	}

	// A path cannot be both an option and the parent of one.
	for key, decl := range sch.decls {
		if sch.interior[key] {
			d := diag.New(diag.DuplicateDeclaration, key, "declared as an option by %s but also used as a parent of other options", decl.Origin)
			d.Origins = []string{decl.Origin.String()}
			diags = diags.Append(d)
		}
	}

	return sch, diags
}

// explode resolves a definition to the declared leaf paths it contributes
// to. A definition on a declared option maps to itself; a definition on an
// interior (submodule) path is split per key, recursively, so different
// modules may contribute different keys of one set. seq tags the resulting
// defs with the global load order.
func (sch *schema) explode(def module.Definition, seq int) ([]merge.Def, diag.Diagnostics) {
	key := def.Path.String()

	if _, declared := sch.decls[key]; declared {
		return []merge.Def{{Definition: def, Seq: seq}}, nil
	}

	if !sch.interior[key] {
		d := diag.New(diag.UndeclaredOption, key, "definition from %s targets an undeclared option", def.Origin)
		d.Origins = []string{def.Origin.String()}
		d.Priorities = []int{def.Priority}
		return nil, diag.Diagnostics{d}
	}

	// Interior path. An unknown value cannot be split by key yet, so it
	// contributes unknown to every declared option underneath; the next
	// iteration refines it.
	if !def.Value.IsKnown() {
		var out []merge.Def
		for _, declared := range sch.order {
			decl := sch.decls[declared]
			if !decl.Path.HasPrefix(def.Path) {
				continue
			}
			child := def
			child.Path = decl.Path
			child.Value = cty.UnknownVal(decl.Type.CtyType())
			out = append(out, merge.Def{Definition: child, Seq: seq})
		}
		return out, nil
	}

	if def.Value.IsNull() || (!def.Value.Type().IsObjectType() && !def.Value.Type().IsMapType()) {
		d := diag.New(diag.TypeMismatch, key, "definition from %s targets a submodule but is not an attribute set", def.Origin)
		d.Origins = []string{def.Origin.String()}
		d.Priorities = []int{def.Priority}
		return nil, diag.Diagnostics{d}
	}

	var out []merge.Def
	var diags diag.Diagnostics
	for _, k := range sortedKeys(def.Value) {
		child := def
		child.Path = def.Path.Child(k)
		child.Value = def.Value.AsValueMap()[k]
		defs, childDiags := sch.explode(child, seq)
		out = append(out, defs...)
		diags = diags.Extend(childDiags)
	}
	return out, diags
}

// sortedKeys returns an object/map value's keys in sorted order so
// explosion is deterministic.
func sortedKeys(v cty.Value) []string {
	m := v.AsValueMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	optpath.SortStrings(keys)
	return keys
}
