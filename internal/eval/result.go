package eval

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/optpath"
)

// Result is a fully resolved configuration: an immutable mapping from
// option path to concrete value, produced only after the fixed point was
// reached. It also carries the warnings collected post-resolution and the
// run's identity for diagnostics correlation.
type Result struct {
	// RunID uniquely identifies this evaluation run in logs.
	RunID string

	// Iterations is the number of fixed-point passes it took to stabilize.
	Iterations int

	// Warnings collected post-resolution; advisory only.
	Warnings []string

	sch    *schema
	values map[string]cty.Value
}

// Paths returns every resolved option path in total path order.
func (r *Result) Paths() []optpath.Path {
	out := make([]optpath.Path, 0, len(r.sch.order))
	for _, key := range r.sch.order {
		if v, ok := r.values[key]; ok && v != cty.NilVal {
			out = append(out, r.sch.decls[key].Path)
		}
	}
	return out
}

// Value returns the resolved value at path.
func (r *Result) Value(path optpath.Path) (cty.Value, bool) {
	v, ok := r.values[path.String()]
	if !ok || v == cty.NilVal {
		return cty.NilVal, false
	}
	return v, true
}

// Declaration returns the declaration for a path, if any.
func (r *Result) Declaration(path optpath.Path) (module.Declaration, bool) {
	d, ok := r.sch.decls[path.String()]
	return d, ok
}

// Declarations returns every declaration in total path order, including
// options that ended up with no value.
func (r *Result) Declarations() []module.Declaration {
	out := make([]module.Declaration, 0, len(r.sch.order))
	for _, key := range r.sch.order {
		out = append(out, r.sch.decls[key])
	}
	return out
}

// View returns a read-only lens over the final configuration, for
// downstream consumers that evaluate expressions against it.
func (r *Result) View() module.View {
	return &view{sch: r.sch, values: r.values}
}

// Bool returns the resolved boolean at path.
func (r *Result) Bool(path optpath.Path) (bool, error) {
	v, ok := r.Value(path)
	if !ok {
		return false, fmt.Errorf("option %s has no value", path)
	}
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("option %s is %s, not bool", path, v.Type().FriendlyName())
	}
	return v.True(), nil
}

// Int returns the resolved integer at path.
func (r *Result) Int(path optpath.Path) (int64, error) {
	v, ok := r.Value(path)
	if !ok {
		return 0, fmt.Errorf("option %s has no value", path)
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("option %s is %s, not int", path, v.Type().FriendlyName())
	}
	i, _ := v.AsBigFloat().Int64()
	return i, nil
}

// String returns the resolved string at path.
func (r *Result) String(path optpath.Path) (string, error) {
	v, ok := r.Value(path)
	if !ok {
		return "", fmt.Errorf("option %s has no value", path)
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("option %s is %s, not string", path, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// Strings returns the resolved list of strings at path.
func (r *Result) Strings(path optpath.Path) ([]string, error) {
	v, ok := r.Value(path)
	if !ok {
		return nil, fmt.Errorf("option %s has no value", path)
	}
	if !v.Type().IsListType() || v.Type().ElementType() != cty.String {
		return nil, fmt.Errorf("option %s is %s, not list of string", path, v.Type().FriendlyName())
	}
	out := make([]string, 0, v.LengthInt())
	for _, ev := range v.AsValueSlice() {
		out = append(out, ev.AsString())
	}
	return out, nil
}
