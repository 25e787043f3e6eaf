// Package reconcile holds the set arithmetic used to decide which files still
// need to be fetched: case-insensitive differences between file lists and the
// flattening of file groups into such lists.
package reconcile

import (
	"sort"
	"strings"

	"github.com/tildaslashalef/assetsync/internal/filegroup"
)

// FindMissing returns the paths of current that are absent from baseline,
// comparing case-insensitively.
//
// The result is sorted by its case-folded form and holds one entry per
// case-folded path; when current spells the same path several ways, the
// lexicographically smallest spelling wins. Neither input is modified.
func FindMissing(current, baseline []string) []string {
	known := make(map[string]struct{}, len(baseline))
	for _, file := range baseline {
		known[foldKey(file)] = struct{}{}
	}

	picked := make(map[string]string)
	for _, file := range current {
		key := foldKey(file)
		if _, ok := known[key]; ok {
			continue
		}
		if prev, ok := picked[key]; !ok || file < prev {
			picked[key] = file
		}
	}

	keys := make([]string, 0, len(picked))
	for key := range picked {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		missing = append(missing, picked[key])
	}
	return missing
}

// AllFiles flattens groups into one list: each group's files, main file first,
// in group order.
func AllFiles(groups []filegroup.Group) []string {
	files := make([]string, 0, len(groups)*2)
	for _, group := range groups {
		files = append(files, group.Files()...)
	}
	return files
}

// AllMainFiles returns the main file of every group, in group order.
func AllMainFiles(groups []filegroup.Group) []string {
	mainFiles := make([]string, 0, len(groups))
	for _, group := range groups {
		mainFiles = append(mainFiles, group.MainFile())
	}
	return mainFiles
}

func foldKey(p string) string {
	return strings.ToLower(p)
}
