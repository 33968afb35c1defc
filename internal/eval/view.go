package eval

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/optpath"
)

// view is the read-only lens handed to deferred definitions and assertion
// predicates. Unresolved paths read as unknown values; paths outside the
// schema read as NilVal.
type view struct {
	sch    *schema
	values map[string]cty.Value
}

// Value returns the current value at path, unknown when unresolved.
func (v *view) Value(path optpath.Path) cty.Value {
	key := path.String()
	if decl, ok := v.sch.decls[key]; ok {
		val, ok := v.values[key]
		if !ok || val == cty.NilVal {
			return cty.UnknownVal(decl.Type.CtyType())
		}
		return val
	}
	if v.sch.interior[key] {
		return v.subtree(key)
	}
	return cty.NilVal
}

// Root returns the whole configuration as one nested object value, with
// unknowns standing in for unresolved paths. This is the evaluation scope
// HCL expressions see as "config".
func (v *view) Root() cty.Value {
	return v.subtree("")
}

// subtree builds the object value rooted at the given dotted prefix
// ("" for the root). Children appear in path order, so the resulting
// object is deterministic.
func (v *view) subtree(prefix string) cty.Value {
	attrs := map[string]cty.Value{}

	for _, key := range v.sch.order {
		rest := key
		if prefix != "" {
			if !strings.HasPrefix(key, prefix+".") {
				continue
			}
			rest = key[len(prefix)+1:]
		}

		seg := rest
		if i := strings.IndexByte(rest, '.'); i >= 0 {
			seg = rest[:i]
		}
		if _, done := attrs[seg]; done {
			continue
		}

		childKey := seg
		if prefix != "" {
			childKey = prefix + "." + seg
		}
		if decl, ok := v.sch.decls[childKey]; ok {
			val, exists := v.values[childKey]
			if !exists || val == cty.NilVal {
				val = cty.UnknownVal(decl.Type.CtyType())
			}
			attrs[seg] = val
			continue
		}
		attrs[seg] = v.subtree(childKey)
	}

	return cty.ObjectVal(attrs)
}
