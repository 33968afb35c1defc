package cmd

import (
	"fmt"

	"grimm.is/moraine/internal/render"
)

// RunDiff resolves two module directories and prints a unified diff of
// their final configurations. Returns an error when they differ, so the
// exit code is usable in scripts.
func RunDiff(dirA, dirB string, maxIterations int) error {
	_, resultA, diagsA, err := loadAndRun(dirA, maxIterations)
	if err != nil {
		return err
	}
	if diagsA.HasErrors() {
		printDiagnostics(diagsA)
		return fmt.Errorf("%s: configuration invalid", dirA)
	}

	_, resultB, diagsB, err := loadAndRun(dirB, maxIterations)
	if err != nil {
		return err
	}
	if diagsB.HasErrors() {
		printDiagnostics(diagsB)
		return fmt.Errorf("%s: configuration invalid", dirB)
	}

	text, err := render.Unified(dirA, render.Flat(resultA), dirB, render.Flat(resultB))
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Println("Configurations are identical.")
		return nil
	}

	fmt.Print(text)
	return fmt.Errorf("configurations differ")
}
