// Package typesys defines the closed set of value types an option can
// declare: bool, int, string, enum, list-of-T, attrs-of-T and submodule.
// Values are represented as cty values (the same representation HCL
// decoding produces), and each type carries its own validation, same-tier
// combine rule and stabilization equality.
package typesys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Kind enumerates the type variants.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindEnum
	KindList
	KindAttrs
	KindSubmodule
)

// Type describes one option value type. Types are immutable after
// construction and safe to share between evaluation runs.
type Type struct {
	kind       Kind
	elem       *Type    // element type for list/attrs
	enumValues []string // allowed values for enum
	additive   bool     // list accumulates across priority tiers
}

// Bool returns the boolean type.
func Bool() *Type { return &Type{kind: KindBool} }

// Int returns the integer type.
func Int() *Type { return &Type{kind: KindInt} }

// String returns the string type.
func String() *Type { return &Type{kind: KindString} }

// Enum returns a string type restricted to the given values.
func Enum(values ...string) *Type {
	return &Type{kind: KindEnum, enumValues: values}
}

// List returns a list of the given element type. An additive list
// accumulates contributions from every priority tier instead of letting
// the strongest tier exclude the rest.
func List(elem *Type, additive bool) *Type {
	return &Type{kind: KindList, elem: elem, additive: additive}
}

// Attrs returns an attribute set mapping arbitrary keys to the given
// element type. Different modules may contribute different keys; merging
// recurses per key.
func Attrs(elem *Type) *Type {
	return &Type{kind: KindAttrs, elem: elem}
}

// Submodule returns the type of an interior configuration node whose
// children are separately declared options. Definitions targeting a
// submodule are exploded into per-child definitions before merging.
func Submodule() *Type { return &Type{kind: KindSubmodule} }

// Kind returns the type's variant.
func (t *Type) Kind() Kind { return t.kind }

// Elem returns the element type of a list or attrs type, nil otherwise.
func (t *Type) Elem() *Type { return t.elem }

// Additive reports whether the type accumulates across priority tiers.
func (t *Type) Additive() bool { return t.kind == KindList && t.additive }

// EnumValues returns the allowed values of an enum type.
func (t *Type) EnumValues() []string { return t.enumValues }

// FriendlyName returns a human-readable type name for diagnostics.
func (t *Type) FriendlyName() string {
	switch t.kind {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindEnum:
		return fmt.Sprintf("enum(%s)", strings.Join(t.enumValues, ", "))
	case KindList:
		if t.additive {
			return "additive list of " + t.elem.FriendlyName()
		}
		return "list of " + t.elem.FriendlyName()
	case KindAttrs:
		return "attrs of " + t.elem.FriendlyName()
	case KindSubmodule:
		return "submodule"
	default:
		return fmt.Sprintf("type(%d)", int(t.kind))
	}
}

// CtyType returns the cty representation values of this type conform to.
func (t *Type) CtyType() cty.Type {
	switch t.kind {
	case KindBool:
		return cty.Bool
	case KindInt:
		return cty.Number
	case KindString, KindEnum:
		return cty.String
	case KindList:
		return cty.List(t.elem.CtyType())
	case KindAttrs:
		return cty.Map(t.elem.CtyType())
	default:
		return cty.DynamicPseudoType
	}
}

// Validate checks a value against the type and returns it normalized to
// the type's cty representation (HCL decoding yields tuples and objects
// where lists and maps are declared; conversion unifies them). Unknown
// values pass: they stand in for not-yet-resolved paths and are checked
// again once the fixed point supplies them.
func (t *Type) Validate(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal {
		return cty.NilVal, fmt.Errorf("no value")
	}
	if v.IsNull() {
		return cty.NilVal, fmt.Errorf("value is null, expected %s", t.FriendlyName())
	}
	if !v.IsKnown() {
		return cty.UnknownVal(t.CtyType()), nil
	}

	switch t.kind {
	case KindSubmodule:
		if !v.Type().IsObjectType() && !v.Type().IsMapType() {
			return cty.NilVal, fmt.Errorf("value %s is not an attribute set, expected submodule", typeName(v))
		}
		return v, nil

	case KindList, KindAttrs:
		converted, err := convert.Convert(v, t.CtyType())
		if err != nil {
			return cty.NilVal, fmt.Errorf("value %s does not conform to %s: %w", typeName(v), t.FriendlyName(), err)
		}
		// Element-level checks conversion cannot express (enum membership,
		// integer-ness) recurse per element.
		elems := converted.AsValueSlice()
		if t.kind == KindAttrs {
			elems = nil
			for _, ev := range converted.AsValueMap() {
				elems = append(elems, ev)
			}
		}
		for _, ev := range elems {
			if _, err := t.elem.Validate(ev); err != nil {
				return cty.NilVal, fmt.Errorf("element of %s: %w", t.FriendlyName(), err)
			}
		}
		return converted, nil

	default:
		converted, err := convert.Convert(v, t.CtyType())
		if err != nil {
			return cty.NilVal, fmt.Errorf("value %s does not conform to %s: %w", typeName(v), t.FriendlyName(), err)
		}
		if !converted.IsKnown() {
			return converted, nil
		}
		switch t.kind {
		case KindInt:
			if bf := converted.AsBigFloat(); !bf.IsInt() {
				return cty.NilVal, fmt.Errorf("number %s is not an integer", bf.String())
			}
		case KindEnum:
			s := converted.AsString()
			for _, allowed := range t.enumValues {
				if s == allowed {
					return converted, nil
				}
			}
			return cty.NilVal, fmt.Errorf("%q is not one of %s", s, strings.Join(t.enumValues, ", "))
		}
		return converted, nil
	}
}

// Equal is the stabilization equality: the fixed-point loop stops when
// every path's value is Equal to the previous iteration's. Unknown values
// of the same type compare equal to each other and unequal to any known
// value, which is exactly the progress measure the loop needs.
func (t *Type) Equal(a, b cty.Value) bool {
	if a == cty.NilVal || b == cty.NilVal {
		return a == b
	}
	return a.RawEquals(b)
}

// ConflictError reports an irreconcilable same-tier combine. Indexes refer
// to the input slice so the caller can name both origins; Key is set when
// the clash happened under an attribute-set key.
type ConflictError struct {
	IndexA, IndexB int
	Key            string
	A, B           cty.Value
}

func (e *ConflictError) Error() string {
	where := ""
	if e.Key != "" {
		where = fmt.Sprintf(" at key %q", e.Key)
	}
	return fmt.Sprintf("conflicting values%s: %s vs %s", where, renderValue(e.A), renderValue(e.B))
}

// Combine merges same-priority values into one, in definition order.
// Scalars and enums require equality; lists concatenate; attribute sets
// union per key, recursing into the element type on key collisions. If any
// input is unknown the result is unknown and conflict detection is
// deferred to a later iteration, when the unknowns have resolved.
func (t *Type) Combine(vals []cty.Value) (cty.Value, *ConflictError) {
	if len(vals) == 0 {
		return cty.NilVal, nil
	}
	for _, v := range vals {
		if !v.IsKnown() {
			return cty.UnknownVal(t.CtyType()), nil
		}
	}

	switch t.kind {
	case KindList:
		var out []cty.Value
		for _, v := range vals {
			out = append(out, v.AsValueSlice()...)
		}
		if len(out) == 0 {
			return cty.ListValEmpty(t.elem.CtyType()), nil
		}
		return cty.ListVal(out), nil

	case KindAttrs:
		merged := map[string]cty.Value{}
		holder := map[string]int{} // key -> index of first contributing value
		for i, v := range vals {
			vm := v.AsValueMap()
			// Sorted key order so a multi-key clash always surfaces the
			// same ConflictError.
			keys := make([]string, 0, len(vm))
			for key := range vm {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				ev := vm[key]
				prev, exists := merged[key]
				if !exists {
					merged[key] = ev
					holder[key] = i
					continue
				}
				combined, conflict := t.elem.Combine([]cty.Value{prev, ev})
				if conflict != nil {
					return cty.NilVal, &ConflictError{
						IndexA: holder[key],
						IndexB: i,
						Key:    key,
						A:      prev,
						B:      ev,
					}
				}
				merged[key] = combined
			}
		}
		if len(merged) == 0 {
			return cty.MapValEmpty(t.elem.CtyType()), nil
		}
		return cty.MapVal(merged), nil

	default:
		first := vals[0]
		for i := 1; i < len(vals); i++ {
			if !first.RawEquals(vals[i]) {
				return cty.NilVal, &ConflictError{IndexA: 0, IndexB: i, A: first, B: vals[i]}
			}
		}
		return first, nil
	}
}

// typeName names a value's cty type for error messages.
func typeName(v cty.Value) string {
	return v.Type().FriendlyName()
}

// renderValue renders a value compactly for diagnostics.
func renderValue(v cty.Value) string {
	if v == cty.NilVal {
		return "<nil>"
	}
	if !v.IsKnown() {
		return "<unresolved>"
	}
	if v.IsNull() {
		return "null"
	}
	switch {
	case v.Type() == cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case v.Type() == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		parts := []string{}
		if v.CanIterateElements() {
			it := v.ElementIterator()
			for it.Next() {
				k, ev := it.Element()
				if v.Type().IsMapType() || v.Type().IsObjectType() {
					parts = append(parts, fmt.Sprintf("%s=%s", k.AsString(), renderValue(ev)))
				} else {
					parts = append(parts, renderValue(ev))
				}
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

// RenderValue renders a value compactly for diagnostics and listings.
func RenderValue(v cty.Value) string {
	return renderValue(v)
}
