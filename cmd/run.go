// Package cmd implements the CLI subcommands. Each RunX function is one
// subcommand; main parses flags and dispatches here.
package cmd

import (
	"fmt"
	"os"

	"grimm.is/moraine/internal/diag"
	"grimm.is/moraine/internal/eval"
	"grimm.is/moraine/internal/loader"
	"grimm.is/moraine/internal/logging"
	"grimm.is/moraine/internal/module"
)

// loadAndRun loads every module file in dir and resolves them to a fixed
// point. Diagnostics are returned alongside the result; warnings are
// present even on success.
func loadAndRun(dir string, maxIterations int) ([]module.Module, *eval.Result, diag.Diagnostics, error) {
	mods, err := loader.LoadDir(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	evaluator := eval.New(eval.Options{
		MaxIterations: maxIterations,
		Logger:        logging.Default(),
	})
	result, diags := evaluator.Run(mods)
	return mods, result, diags, nil
}

// printDiagnostics writes every diagnostic to stderr, one line each,
// prefixed by severity.
func printDiagnostics(diags diag.Diagnostics) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", d.Severity, d.Error())
	}
}
