// Package brand provides centralized branding constants for the engine.
// Keeping the identity in one place makes renaming or forking the tool a
// one-file change.
package brand

const (
	// Name is the product name used in user-facing output.
	Name = "Moraine"

	// LowerName is the lowercase name used for binaries, prefixes and paths.
	LowerName = "moraine"

	// Description is a one-line summary used by help output.
	Description = "declarative configuration composition engine"

	// DefaultModuleDir is where module files are looked up when no
	// directory is given on the command line.
	DefaultModuleDir = "/etc/moraine/modules"

	// ModuleFileSuffix is the extension module files must carry.
	ModuleFileSuffix = ".hcl"
)

// Version is set at build time via -ldflags.
var Version = "dev"
