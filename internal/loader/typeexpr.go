package loader

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/typesys"
)

// typeExprToType converts an HCL type expression (`bool`, `list(string)`,
// `enum("a", "b")`, `map(int)`) into the engine's option type. The
// additive flag for lists comes from the option block, not the type
// expression.
func typeExprToType(expr hcl.Expression, additive bool) (*typesys.Type, error) {
	switch v := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return nil, fmt.Errorf("invalid type keyword: not a single identifier")
		}
		switch name := v.Traversal.RootName(); name {
		case "bool":
			return typesys.Bool(), nil
		case "int":
			return typesys.Int(), nil
		case "string":
			return typesys.String(), nil
		default:
			return nil, fmt.Errorf("unknown type %q", name)
		}

	case *hclsyntax.FunctionCallExpr:
		switch v.Name {
		case "list", "map":
			if len(v.Args) != 1 {
				return nil, fmt.Errorf("%s(...) requires exactly one element type, got %d", v.Name, len(v.Args))
			}
			elem, err := typeExprToType(v.Args[0], false)
			if err != nil {
				return nil, err
			}
			if v.Name == "list" {
				return typesys.List(elem, additive), nil
			}
			return typesys.Attrs(elem), nil

		case "enum":
			if len(v.Args) == 0 {
				return nil, fmt.Errorf("enum(...) requires at least one value")
			}
			values := make([]string, 0, len(v.Args))
			for _, arg := range v.Args {
				av, diags := arg.Value(nil)
				if diags.HasErrors() || av.Type() != cty.String {
					return nil, fmt.Errorf("enum values must be string literals")
				}
				values = append(values, av.AsString())
			}
			return typesys.Enum(values...), nil

		default:
			return nil, fmt.Errorf("unknown type constructor %q", v.Name)
		}

	default:
		return nil, fmt.Errorf("unsupported type expression")
	}
}
