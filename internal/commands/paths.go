package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tildaslashalef/assetsync/internal/filegroup"
)

// projectPaths turns command line paths into project-relative slash paths.
// Relative arguments are taken as already relative to the project root.
func projectPaths(root string, args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		p := arg
		if filepath.IsAbs(arg) {
			rel, err := filepath.Rel(root, arg)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", arg, err)
			}
			if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return nil, fmt.Errorf("%s is outside the project root %s", arg, root)
			}
			p = rel
		}

		clean := filegroup.CleanPath(p)
		if clean == "" && arg != "." && arg != root {
			return nil, fmt.Errorf("invalid path %q", arg)
		}
		paths = append(paths, clean)
	}
	return paths, nil
}

// splitByExtension returns the paths with extension ext and the rest, both in input order
func splitByExtension(paths []string, ext string) (matched, rest []string) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ext) {
			matched = append(matched, p)
		} else {
			rest = append(rest, p)
		}
	}
	return matched, rest
}
