// Package render turns resolved configurations into human-facing output:
// a nested YAML document, a flat path listing, a unified diff between two
// results, and reference documentation for the declared options.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v2"

	"grimm.is/moraine/internal/eval"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/typesys"
)

// YAML renders the resolved configuration as one nested YAML document.
// Keys within each level are emitted in path order.
func YAML(result *eval.Result) (string, error) {
	root := yaml.MapSlice{}
	for _, path := range result.Paths() {
		v, _ := result.Value(path)
		gv, err := ctyToGo(v)
		if err != nil {
			return "", fmt.Errorf("option %s: %w", path, err)
		}
		root = insert(root, []string(path), gv)
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("failed to render configuration: %w", err)
	}
	return string(out), nil
}

// Flat renders the resolved configuration as one "path = value" line per
// option, in path order.
func Flat(result *eval.Result) string {
	var b strings.Builder
	for _, path := range result.Paths() {
		v, _ := result.Value(path)
		fmt.Fprintf(&b, "%s = %s\n", path, typesys.RenderValue(v))
	}
	return b.String()
}

// Unified renders a unified diff between two rendered configurations.
// Returns the empty string when they are identical.
func Unified(fromName, from, toName, to string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to compute diff: %w", err)
	}
	return text, nil
}

// optionDoc is the YAML shape of one documented option.
type optionDoc struct {
	Option      string `yaml:"option"`
	Type        string `yaml:"type"`
	Default     string `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
	DeclaredBy  string `yaml:"declared_by"`
}

// OptionsDoc renders reference documentation for a set of declarations,
// in path order.
func OptionsDoc(decls []module.Declaration) (string, error) {
	docs := make([]optionDoc, 0, len(decls))
	for _, d := range decls {
		doc := optionDoc{
			Option:      d.Path.String(),
			Type:        d.Type.FriendlyName(),
			Description: d.Description,
			DeclaredBy:  d.Origin.String(),
		}
		if d.Default != cty.NilVal {
			doc.Default = typesys.RenderValue(d.Default)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Option < docs[j].Option })

	out, err := yaml.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("failed to render options documentation: %w", err)
	}
	return string(out), nil
}

// insert places value at the dotted path inside a nested MapSlice,
// creating interior maps as needed. MapSlice preserves insertion order,
// which callers keep aligned with path order.
func insert(node yaml.MapSlice, path []string, value interface{}) yaml.MapSlice {
	if len(path) == 1 {
		return append(node, yaml.MapItem{Key: path[0], Value: value})
	}
	for i, item := range node {
		if item.Key == path[0] {
			child, ok := item.Value.(yaml.MapSlice)
			if !ok {
				// A leaf and an interior node share a prefix; the schema
				// forbids this, so it cannot happen for evaluator output.
				child = yaml.MapSlice{}
			}
			node[i].Value = insert(child, path[1:], value)
			return node
		}
	}
	return append(node, yaml.MapItem{
		Key:   path[0],
		Value: insert(yaml.MapSlice{}, path[1:], value),
	})
}

// ctyToGo converts a resolved value into plain Go data for YAML encoding.
func ctyToGo(v cty.Value) (interface{}, error) {
	if v == cty.NilVal || v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not resolved")
	}

	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]interface{}, 0, v.LengthInt())
		for _, ev := range v.AsValueSlice() {
			gv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		vm := v.AsValueMap()
		keys := make([]string, 0, len(vm))
		for k := range vm {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := yaml.MapSlice{}
		for _, k := range keys {
			gv, err := ctyToGo(vm[k])
			if err != nil {
				return nil, err
			}
			out = append(out, yaml.MapItem{Key: k, Value: gv})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot render %s", ty.FriendlyName())
	}
}
