package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/moraine/cmd"
	"grimm.is/moraine/internal/brand"
	"grimm.is/moraine/internal/eval"
	"grimm.is/moraine/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		dir := moduleDirFlag(checkFlags)
		maxIter := maxIterationsFlag(checkFlags)
		verbose := checkFlags.Bool("verbose", false, "Also print every resolved option")
		checkFlags.BoolVar(verbose, "v", false, "Also print every resolved option (short)")
		debug := debugFlag(checkFlags)
		checkFlags.Parse(os.Args[2:])
		applyLogLevel(*debug)

		if err := cmd.RunCheck(*dir, *maxIter, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "eval":
		evalFlags := flag.NewFlagSet("eval", flag.ExitOnError)
		dir := moduleDirFlag(evalFlags)
		maxIter := maxIterationsFlag(evalFlags)
		format := evalFlags.String("format", "yaml", "Output format: yaml or flat")
		evalFlags.StringVar(format, "f", "yaml", "Output format (short)")
		debug := debugFlag(evalFlags)
		evalFlags.Parse(os.Args[2:])
		applyLogLevel(*debug)

		if err := cmd.RunEval(*dir, *maxIter, *format); err != nil {
			fmt.Fprintf(os.Stderr, "Eval failed: %v\n", err)
			os.Exit(1)
		}

	case "diff":
		diffFlags := flag.NewFlagSet("diff", flag.ExitOnError)
		maxIter := maxIterationsFlag(diffFlags)
		debug := debugFlag(diffFlags)
		diffFlags.Parse(os.Args[2:])
		applyLogLevel(*debug)

		if len(diffFlags.Args()) != 2 {
			fmt.Fprintf(os.Stderr, "Usage: %s diff <module-dir-a> <module-dir-b>\n", brand.LowerName)
			os.Exit(1)
		}
		if err := cmd.RunDiff(diffFlags.Arg(0), diffFlags.Arg(1), *maxIter); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "docs":
		docsFlags := flag.NewFlagSet("docs", flag.ExitOnError)
		dir := moduleDirFlag(docsFlags)
		docsFlags.Parse(os.Args[2:])

		if err := cmd.RunDocs(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "Docs failed: %v\n", err)
			os.Exit(1)
		}

	case "version", "--version", "-V":
		fmt.Printf("%s %s\n", brand.LowerName, brand.Version)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func moduleDirFlag(fs *flag.FlagSet) *string {
	dir := fs.String("dir", brand.DefaultModuleDir, "Module directory")
	fs.StringVar(dir, "d", brand.DefaultModuleDir, "Module directory (short)")
	return dir
}

func maxIterationsFlag(fs *flag.FlagSet) *int {
	return fs.Int("max-iterations", eval.DefaultMaxIterations, "Fixed-point iteration bound")
}

func debugFlag(fs *flag.FlagSet) *bool {
	return fs.Bool("debug", false, "Enable debug logging")
}

func applyLogLevel(debug bool) {
	if debug {
		logging.Default().SetLevel(logging.LevelDebug)
	}
}

func printUsage() {
	fmt.Printf("%s - %s\n\n", brand.Name, brand.Description)
	fmt.Println("Usage:")
	fmt.Printf("  %s check [-d dir] [-v]          Validate the module set\n", brand.LowerName)
	fmt.Printf("  %s eval  [-d dir] [-f format]   Resolve and print the configuration\n", brand.LowerName)
	fmt.Printf("  %s diff  <dir-a> <dir-b>        Compare two resolved configurations\n", brand.LowerName)
	fmt.Printf("  %s docs  [-d dir]               Print option reference documentation\n", brand.LowerName)
	fmt.Printf("  %s version                      Print the version\n", brand.LowerName)
	fmt.Println()
	fmt.Printf("Module files are %s files in the module directory (default %s).\n",
		brand.ModuleFileSuffix, brand.DefaultModuleDir)
}
