package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"pgregory.net/rapid"

	"grimm.is/moraine/internal/diag"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/optpath"
	"grimm.is/moraine/internal/typesys"
)

func decl(path string, typ *typesys.Type, def cty.Value) module.Declaration {
	return module.Declaration{
		Path:    optpath.MustParse(path),
		Type:    typ,
		Default: def,
		Origin:  module.Origin{Module: "schema", Source: path + ".hcl:1"},
	}
}

func def(path string, v cty.Value, priority, seq int, mod string) Def {
	return Def{
		Definition: module.Definition{
			Path:     optpath.MustParse(path),
			Value:    v,
			Priority: priority,
			Origin:   module.Origin{Module: mod},
		},
		Seq: seq,
	}
}

func TestResolve_SingleDefinition(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NilVal)

	v, diags := Resolve(d, []Def{def("count", cty.NumberIntVal(5), module.PriorityDefault, 0, "m1")})
	require.False(t, diags.HasErrors(), "%v", diags)
	assert.True(t, v.RawEquals(cty.NumberIntVal(5)))
}

func TestResolve_DefaultOnly(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NumberIntVal(0))

	v, diags := Resolve(d, nil)
	require.False(t, diags.HasErrors())
	assert.True(t, v.RawEquals(cty.NumberIntVal(0)))
}

func TestResolve_DefaultDisplacedByDefinition(t *testing.T) {
	// The declaration default is a fallback: once any definition exists it
	// must not contribute, even to an additive list.
	d := decl("tags", typesys.List(typesys.String(), true),
		cty.ListVal([]cty.Value{cty.StringVal("fallback")}))

	v, diags := Resolve(d, []Def{
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("a")}), module.PriorityDefault, 0, "m1"),
	})
	require.False(t, diags.HasErrors(), "%v", diags)
	require.Equal(t, 1, v.LengthInt())
	assert.Equal(t, "a", v.Index(cty.NumberIntVal(0)).AsString())

	// Same for a non-additive scalar: the definition alone decides.
	ds := decl("count", typesys.Int(), cty.NumberIntVal(0))
	vs, diags := Resolve(ds, []Def{def("count", cty.NumberIntVal(5), module.PriorityDefault, 0, "m1")})
	require.False(t, diags.HasErrors())
	assert.True(t, vs.RawEquals(cty.NumberIntVal(5)))
}

func TestResolve_NoDefinitionsNoDefault(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NilVal)

	v, diags := Resolve(d, nil)
	assert.False(t, diags.HasErrors())
	assert.Equal(t, cty.NilVal, v)
}

func TestResolve_EqualValuesSameTier(t *testing.T) {
	d := decl("host", typesys.String(), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("host", cty.StringVal("gw"), module.PriorityNormal, 0, "m1"),
		def("host", cty.StringVal("gw"), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	assert.Equal(t, "gw", v.AsString())
}

func TestResolve_ConflictNamesBothOrigins(t *testing.T) {
	d := decl("host", typesys.String(), cty.NilVal)

	_, diags := Resolve(d, []Def{
		def("host", cty.StringVal("a"), module.PriorityNormal, 0, "m1"),
		def("host", cty.StringVal("b"), module.PriorityNormal, 1, "m2"),
	})
	require.True(t, diags.HasErrors())

	conflicts := diags.ByKind(diag.Conflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "host", conflicts[0].Path)
	assert.Contains(t, conflicts[0].Origins, "m1")
	assert.Contains(t, conflicts[0].Origins, "m2")
	assert.Equal(t, []int{module.PriorityNormal, module.PriorityNormal}, conflicts[0].Priorities)
}

func TestResolve_StrongerTierWinsSilently(t *testing.T) {
	d := decl("host", typesys.String(), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("host", cty.StringVal("weak"), module.PriorityDefault, 0, "m1"),
		def("host", cty.StringVal("strong"), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	assert.Equal(t, "strong", v.AsString())
}

func TestResolve_ForceWinsAndSuppressesConflict(t *testing.T) {
	// count defaults to 0, m1 sets 5 normally and m2
	// forces 7; the force definition wins without a conflict.
	d := decl("count", typesys.Int(), cty.NumberIntVal(0))

	v, diags := Resolve(d, []Def{
		def("count", cty.NumberIntVal(5), module.PriorityDefault, 0, "m1"),
		def("count", cty.NumberIntVal(7), module.PriorityForce, 1, "m2"),
	})
	require.False(t, diags.HasErrors(), "%v", diags)
	assert.True(t, v.RawEquals(cty.NumberIntVal(7)))
}

func TestResolve_ForceTieBreaksByLoadOrder(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("count", cty.NumberIntVal(2), module.PriorityForce, 1, "m2"),
		def("count", cty.NumberIntVal(1), module.PriorityForce, 0, "m1"),
	})
	require.False(t, diags.HasErrors(), "two force definitions must not conflict")
	assert.True(t, v.RawEquals(cty.NumberIntVal(1)), "first by load order wins")
}

func TestResolve_NonAdditiveListStrongestTierOnly(t *testing.T) {
	d := decl("tags", typesys.List(typesys.String(), false), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("weak")}), module.PriorityDefault, 0, "m1"),
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("strong")}), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	assert.Equal(t, 1, v.LengthInt())
	assert.Equal(t, "strong", v.Index(cty.NumberIntVal(0)).AsString())
}

func TestResolve_AdditiveListAccumulatesAcrossTiers(t *testing.T) {
	// m1 contributes ["a"] and m2 ["b"], both at default
	// priority; an additive list resolves to ["a","b"] in load order.
	d := decl("tags", typesys.List(typesys.String(), true), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("a")}), module.PriorityDefault, 0, "m1"),
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("b")}), module.PriorityDefault, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	require.Equal(t, 2, v.LengthInt())
	assert.Equal(t, "a", v.Index(cty.NumberIntVal(0)).AsString())
	assert.Equal(t, "b", v.Index(cty.NumberIntVal(1)).AsString())

	// Stronger tiers order before weaker ones.
	v, diags = Resolve(d, []Def{
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("weak")}), module.PriorityDefault, 0, "m1"),
		def("tags", cty.ListVal([]cty.Value{cty.StringVal("strong")}), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	require.Equal(t, 2, v.LengthInt())
	assert.Equal(t, "strong", v.Index(cty.NumberIntVal(0)).AsString())
	assert.Equal(t, "weak", v.Index(cty.NumberIntVal(1)).AsString())
}

func TestResolve_AttrsMergePartialContributions(t *testing.T) {
	d := decl("ports", typesys.Attrs(typesys.Int()), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("ports", cty.MapVal(map[string]cty.Value{"web": cty.NumberIntVal(80)}), module.PriorityNormal, 0, "m1"),
		def("ports", cty.MapVal(map[string]cty.Value{"ssh": cty.NumberIntVal(22)}), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	assert.Equal(t, 2, v.LengthInt())
}

func TestResolve_TypeMismatchReportsAllOffenders(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NilVal)

	_, diags := Resolve(d, []Def{
		def("count", cty.StringVal("many"), module.PriorityNormal, 0, "m1"),
		def("count", cty.True, module.PriorityNormal, 1, "m2"),
	})
	require.True(t, diags.HasErrors())
	assert.Len(t, diags.ByKind(diag.TypeMismatch), 2, "both mistyped definitions reported in one pass")
}

func TestResolve_UnknownPropagates(t *testing.T) {
	d := decl("count", typesys.Int(), cty.NilVal)

	v, diags := Resolve(d, []Def{
		def("count", cty.UnknownVal(cty.Number), module.PriorityNormal, 0, "m1"),
		def("count", cty.NumberIntVal(3), module.PriorityNormal, 1, "m2"),
	})
	require.False(t, diags.HasErrors())
	assert.False(t, v.IsKnown(), "unknown input defers the merge to a later iteration")
}

// Property: resolution is deterministic regardless of input slice order,
// because tiers sort by (priority, load sequence).
func TestResolve_DeterministicUnderPermutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := decl("tags", typesys.List(typesys.String(), true), cty.NilVal)

		n := rapid.IntRange(1, 6).Draw(t, "n")
		defs := make([]Def, n)
		for i := range defs {
			val := cty.ListVal([]cty.Value{cty.StringVal(rapid.StringMatching(`[a-z]{1,4}`).Draw(t, "elem"))})
			prio := rapid.SampledFrom([]int{module.PriorityNormal, module.PriorityDefault}).Draw(t, "prio")
			defs[i] = def("tags", val, prio, i, "m")
		}

		want, diags := Resolve(d, defs)
		require.False(t, diags.HasErrors())

		perm := rapid.Permutation(defs).Draw(t, "perm")
		got, diags := Resolve(d, perm)
		require.False(t, diags.HasErrors())
		assert.True(t, want.RawEquals(got), "want %v, got %v", want, got)
	})
}

// Property: merging equal same-priority scalar values is idempotent.
func TestResolve_IdempotentEqualScalars(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := decl("count", typesys.Int(), cty.NilVal)
		val := cty.NumberIntVal(int64(rapid.IntRange(-1000, 1000).Draw(t, "v")))
		n := rapid.IntRange(1, 8).Draw(t, "n")

		defs := make([]Def, n)
		for i := range defs {
			defs[i] = def("count", val, module.PriorityNormal, i, "m")
		}

		got, diags := Resolve(d, defs)
		require.False(t, diags.HasErrors())
		assert.True(t, got.RawEquals(val))
	})
}
