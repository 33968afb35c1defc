package cmd

import (
	"fmt"
	"os"

	"grimm.is/moraine/internal/render"
)

// RunEval resolves the module set and prints the final configuration to
// stdout in the requested format ("yaml" or "flat"). Warnings go to
// stderr so the rendered document stays machine-consumable.
func RunEval(moduleDir string, maxIterations int, format string) error {
	_, result, diags, err := loadAndRun(moduleDir, maxIterations)
	if err != nil {
		return err
	}

	printDiagnostics(diags)
	if diags.HasErrors() {
		return fmt.Errorf("configuration invalid")
	}

	switch format {
	case "yaml":
		out, err := render.YAML(result)
		if err != nil {
			return err
		}
		fmt.Print(out)
	case "flat":
		fmt.Print(render.Flat(result))
	default:
		return fmt.Errorf("unknown format %q (want yaml or flat)", format)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	return nil
}
