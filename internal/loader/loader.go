// Package loader reads module files from disk and turns them into the
// engine's module model. Module files are HCL:
//
//	module {
//	  name     = "proxy"
//	  requires = ["base"]
//	}
//
//	option "services.proxy.workers" {
//	  type        = int
//	  default     = 1
//	  description = "Worker processes for the proxy service."
//	}
//
//	set "services.proxy.workers" {
//	  value = config.services.proxy.enable ? 4 : 0
//	}
//
//	assert "workers-bounded" {
//	  condition = config.services.proxy.workers <= 64
//	  message   = "no more than 64 proxy workers"
//	}
//
// A set value may reference `config`, the final merged configuration;
// such definitions are deferred and re-evaluated by the fixed-point
// evaluator, with unknown values standing in for unresolved paths.
//
// Load order is deterministic: files in lexicographic order, blocks in
// source order within a file.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"grimm.is/moraine/internal/brand"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/optpath"
)

// configVarName is the variable module expressions use to read the final
// merged configuration.
const configVarName = "config"

// evalFuncs is the function table available to module expressions.
var evalFuncs = map[string]function.Function{
	"length":   stdlib.LengthFunc,
	"concat":   stdlib.ConcatFunc,
	"contains": stdlib.ContainsFunc,
	"coalesce": stdlib.CoalesceFunc,
	"upper":    stdlib.UpperFunc,
	"lower":    stdlib.LowerFunc,
	"format":   stdlib.FormatFunc,
	"max":      stdlib.MaxFunc,
	"min":      stdlib.MinFunc,
}

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "module"},
		{Type: "option", LabelNames: []string{"path"}},
		{Type: "set", LabelNames: []string{"path"}},
		{Type: "assert", LabelNames: []string{"name"}},
		{Type: "warn", LabelNames: []string{"name"}},
	},
}

var moduleSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "requires"},
	},
}

var optionSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "default"},
		{Name: "description"},
		{Name: "additive"},
	},
}

var setSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value", Required: true},
		{Name: "priority"},
		{Name: "force"},
	},
}

var checkSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "condition", Required: true},
		{Name: "message", Required: true},
	},
}

// deferredSet is one config-referencing set block, re-evaluated per
// fixed-point pass.
type deferredSet struct {
	path     optpath.Path
	expr     hcl.Expression
	priority int
	origin   module.Origin
}

// LoadDir loads every module file (*.hcl) in dir, in lexicographic file
// order.
func LoadDir(dir string) ([]module.Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read module directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), brand.ModuleFileSuffix) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no %s module files in %s", brand.ModuleFileSuffix, dir)
	}

	mods := make([]module.Module, 0, len(files))
	for _, name := range files {
		m, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// LoadFile loads one module file.
func LoadFile(path string) (module.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return module.Module{}, fmt.Errorf("failed to read module file: %w", err)
	}
	return LoadBytes(path, src)
}

// LoadBytes loads a module from in-memory HCL source. filename is used
// for the module's default name and for diagnostics.
func LoadBytes(filename string, src []byte) (module.Module, error) {
	parser := hclparse.NewParser()
	file, hclDiags := parser.ParseHCL(src, filename)
	if hclDiags.HasErrors() {
		return module.Module{}, fmt.Errorf("failed to parse %s: %s", filename, hclDiags.Error())
	}

	content, hclDiags := file.Body.Content(fileSchema)
	if hclDiags.HasErrors() {
		return module.Module{}, fmt.Errorf("invalid module file %s: %s", filename, hclDiags.Error())
	}

	m := module.Module{
		Name: strings.TrimSuffix(filepath.Base(filename), brand.ModuleFileSuffix),
	}

	// The module header must be known before other blocks so their
	// origins carry the right module name.
	for _, block := range content.Blocks {
		if block.Type != "module" {
			continue
		}
		if err := decodeHeader(block, &m); err != nil {
			return module.Module{}, fmt.Errorf("%s: %w", filename, err)
		}
	}

	staticCtx := &hcl.EvalContext{Functions: evalFuncs}
	var deferred []deferredSet

	for _, block := range content.Blocks {
		origin := module.Origin{Module: m.Name, Source: block.DefRange.String()}

		switch block.Type {
		case "module":
			// handled above

		case "option":
			decl, err := decodeOption(block, staticCtx, origin)
			if err != nil {
				return module.Module{}, fmt.Errorf("%s: option %q: %w", filename, block.Labels[0], err)
			}
			m.Declarations = append(m.Declarations, decl)

		case "set":
			def, dyn, err := decodeSet(block, staticCtx, origin)
			if err != nil {
				return module.Module{}, fmt.Errorf("%s: set %q: %w", filename, block.Labels[0], err)
			}
			if dyn != nil {
				deferred = append(deferred, *dyn)
			} else {
				m.Definitions = append(m.Definitions, def)
			}

		case "assert":
			a, err := decodeCheck(block, staticCtx, origin)
			if err != nil {
				return module.Module{}, fmt.Errorf("%s: assert %q: %w", filename, block.Labels[0], err)
			}
			m.Assertions = append(m.Assertions, module.Assertion{
				Name:      block.Labels[0],
				Message:   a.message,
				Origin:    origin,
				Condition: a.condition,
			})

		case "warn":
			w, err := decodeCheck(block, staticCtx, origin)
			if err != nil {
				return module.Module{}, fmt.Errorf("%s: warn %q: %w", filename, block.Labels[0], err)
			}
			m.Warnings = append(m.Warnings, module.Warning{
				Name:      block.Labels[0],
				Message:   w.message,
				Origin:    origin,
				Condition: w.condition,
			})
		}
	}

	if len(deferred) > 0 {
		m.Dynamic = dynamicFunc(deferred)
	}

	return m, nil
}

func decodeHeader(block *hcl.Block, m *module.Module) error {
	content, hclDiags := block.Body.Content(moduleSchema)
	if hclDiags.HasErrors() {
		return fmt.Errorf("invalid module block: %s", hclDiags.Error())
	}

	if attr, ok := content.Attributes["name"]; ok {
		v, err := staticString(attr)
		if err != nil {
			return fmt.Errorf("module name: %w", err)
		}
		m.Name = v
	}

	if attr, ok := content.Attributes["requires"]; ok {
		v, hclDiags := attr.Expr.Value(nil)
		if hclDiags.HasErrors() {
			return fmt.Errorf("module requires: %s", hclDiags.Error())
		}
		converted, err := convert.Convert(v, cty.List(cty.String))
		if err != nil {
			return fmt.Errorf("module requires must be a list of strings: %w", err)
		}
		for _, ev := range converted.AsValueSlice() {
			m.Requires = append(m.Requires, ev.AsString())
		}
	}

	return nil
}

func decodeOption(block *hcl.Block, ctx *hcl.EvalContext, origin module.Origin) (module.Declaration, error) {
	path, err := optpath.Parse(block.Labels[0])
	if err != nil {
		return module.Declaration{}, err
	}

	content, hclDiags := block.Body.Content(optionSchema)
	if hclDiags.HasErrors() {
		return module.Declaration{}, fmt.Errorf("invalid option block: %s", hclDiags.Error())
	}

	additive := false
	if attr, ok := content.Attributes["additive"]; ok {
		v, err := staticBool(attr)
		if err != nil {
			return module.Declaration{}, fmt.Errorf("additive: %w", err)
		}
		additive = v
	}

	typ, err := typeExprToType(content.Attributes["type"].Expr, additive)
	if err != nil {
		return module.Declaration{}, fmt.Errorf("type: %w", err)
	}

	decl := module.Declaration{
		Path:    path,
		Type:    typ,
		Default: cty.NilVal,
		Origin:  origin,
	}

	if attr, ok := content.Attributes["description"]; ok {
		v, err := staticString(attr)
		if err != nil {
			return module.Declaration{}, fmt.Errorf("description: %w", err)
		}
		decl.Description = v
	}

	if attr, ok := content.Attributes["default"]; ok {
		if referencesConfig(attr.Expr) {
			return module.Declaration{}, fmt.Errorf("default must not reference config")
		}
		v, hclDiags := attr.Expr.Value(ctx)
		if hclDiags.HasErrors() {
			return module.Declaration{}, fmt.Errorf("default: %s", hclDiags.Error())
		}
		normalized, err := typ.Validate(v)
		if err != nil {
			return module.Declaration{}, fmt.Errorf("default: %w", err)
		}
		decl.Default = normalized
	}

	return decl, nil
}

// decodeSet returns either a static definition (evaluated at load) or a
// deferred one for config-referencing expressions.
func decodeSet(block *hcl.Block, ctx *hcl.EvalContext, origin module.Origin) (module.Definition, *deferredSet, error) {
	path, err := optpath.Parse(block.Labels[0])
	if err != nil {
		return module.Definition{}, nil, err
	}

	content, hclDiags := block.Body.Content(setSchema)
	if hclDiags.HasErrors() {
		return module.Definition{}, nil, fmt.Errorf("invalid set block: %s", hclDiags.Error())
	}

	priority := module.PriorityNormal
	if attr, ok := content.Attributes["priority"]; ok {
		v, hclDiags := attr.Expr.Value(nil)
		if hclDiags.HasErrors() {
			return module.Definition{}, nil, fmt.Errorf("priority: %s", hclDiags.Error())
		}
		converted, err := convert.Convert(v, cty.Number)
		if err != nil {
			return module.Definition{}, nil, fmt.Errorf("priority must be a number: %w", err)
		}
		p, _ := converted.AsBigFloat().Int64()
		priority = int(p)
	}
	if attr, ok := content.Attributes["force"]; ok {
		v, err := staticBool(attr)
		if err != nil {
			return module.Definition{}, nil, fmt.Errorf("force: %w", err)
		}
		if v {
			priority = module.PriorityForce
		}
	}

	valueExpr := content.Attributes["value"].Expr
	if referencesConfig(valueExpr) {
		return module.Definition{}, &deferredSet{
			path:     path,
			expr:     valueExpr,
			priority: priority,
			origin:   origin,
		}, nil
	}

	v, hclDiags := valueExpr.Value(ctx)
	if hclDiags.HasErrors() {
		return module.Definition{}, nil, fmt.Errorf("value: %s", hclDiags.Error())
	}
	return module.Definition{
		Path:     path,
		Value:    v,
		Priority: priority,
		Origin:   origin,
	}, nil, nil
}

type check struct {
	message   string
	condition func(module.View) (bool, error)
}

func decodeCheck(block *hcl.Block, ctx *hcl.EvalContext, origin module.Origin) (check, error) {
	content, hclDiags := block.Body.Content(checkSchema)
	if hclDiags.HasErrors() {
		return check{}, fmt.Errorf("invalid block: %s", hclDiags.Error())
	}

	msg, err := staticString(content.Attributes["message"])
	if err != nil {
		return check{}, fmt.Errorf("message: %w", err)
	}

	condExpr := content.Attributes["condition"].Expr
	condition := func(v module.View) (bool, error) {
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{configVarName: v.Root()},
			Functions: evalFuncs,
		}
		val, hclDiags := condExpr.Value(evalCtx)
		if hclDiags.HasErrors() {
			return false, fmt.Errorf("%s", hclDiags.Error())
		}
		if !val.IsKnown() {
			return false, fmt.Errorf("condition reads an unresolved option")
		}
		converted, err := convert.Convert(val, cty.Bool)
		if err != nil {
			return false, fmt.Errorf("condition is not a boolean: %w", err)
		}
		return converted.True(), nil
	}

	return check{message: msg, condition: condition}, nil
}

// dynamicFunc bundles a file's deferred set blocks into the module's
// deferred-definition producer.
func dynamicFunc(deferred []deferredSet) module.DynamicFunc {
	return func(v module.View) ([]module.Definition, error) {
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{configVarName: v.Root()},
			Functions: evalFuncs,
		}
		defs := make([]module.Definition, 0, len(deferred))
		for _, s := range deferred {
			val, hclDiags := s.expr.Value(evalCtx)
			if hclDiags.HasErrors() {
				return nil, fmt.Errorf("%s: %s", s.origin.Source, hclDiags.Error())
			}
			defs = append(defs, module.Definition{
				Path:     s.path,
				Value:    val,
				Priority: s.priority,
				Origin:   s.origin,
			})
		}
		return defs, nil
	}
}

// referencesConfig reports whether the expression reads the merged
// configuration, making it a deferred definition.
func referencesConfig(expr hcl.Expression) bool {
	for _, traversal := range expr.Variables() {
		if traversal.RootName() == configVarName {
			return true
		}
	}
	return false
}

func staticString(attr *hcl.Attribute) (string, error) {
	v, hclDiags := attr.Expr.Value(nil)
	if hclDiags.HasErrors() {
		return "", fmt.Errorf("%s", hclDiags.Error())
	}
	converted, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("expected a string: %w", err)
	}
	return converted.AsString(), nil
}

func staticBool(attr *hcl.Attribute) (bool, error) {
	v, hclDiags := attr.Expr.Value(nil)
	if hclDiags.HasErrors() {
		return false, fmt.Errorf("%s", hclDiags.Error())
	}
	converted, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expected a bool: %w", err)
	}
	return converted.True(), nil
}
