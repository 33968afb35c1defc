package cmd

import (
	"fmt"

	"grimm.is/moraine/internal/loader"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/render"
)

// RunDocs prints reference documentation for every option the module set
// declares. Documentation only needs the declarations, so a module set
// whose values do not resolve can still be documented.
func RunDocs(moduleDir string) error {
	mods, err := loader.LoadDir(moduleDir)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var decls []module.Declaration
	for _, m := range mods {
		for _, d := range m.Declarations {
			key := d.Path.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			decls = append(decls, d)
		}
	}

	out, err := render.OptionsDoc(decls)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
