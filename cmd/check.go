package cmd

import (
	"fmt"

	"grimm.is/moraine/internal/render"
)

// RunCheck loads and resolves the module set and reports every problem it
// finds. Exit is non-nil on any error-severity diagnostic.
func RunCheck(moduleDir string, maxIterations int, verbose bool) error {
	mods, result, diags, err := loadAndRun(moduleDir, maxIterations)
	if err != nil {
		return err
	}

	printDiagnostics(diags)
	if diags.HasErrors() {
		return fmt.Errorf("configuration invalid")
	}

	fmt.Printf("Configuration valid!\n")
	fmt.Printf("Modules: %d\n", len(mods))
	fmt.Printf("Options: %d\n", len(result.Declarations()))
	fmt.Printf("Resolved paths: %d\n", len(result.Paths()))
	fmt.Printf("Passes: %d\n", result.Iterations)
	if len(result.Warnings) > 0 {
		fmt.Printf("Warnings: %d\n", len(result.Warnings))
	}

	if verbose {
		fmt.Println()
		fmt.Print(render.Flat(result))
	}

	return nil
}
