// Package scanner finds files of a given type in the local copy of the project
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
)

// FindFilesByExtension lists the files under root whose extension matches ext,
// case-insensitively. Files directly in root come first in name order,
// followed by the results of each subfolder in name order when recursive is
// set. A root that does not exist yields no files.
func FindFilesByExtension(fs billy.Filesystem, root, ext string, recursive bool) ([]string, error) {
	root = filegroup.CleanPath(root)

	dir := root
	if dir == "" {
		dir = "."
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading folder %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var files, nested []string
	for _, entry := range entries {
		name := path.Join(root, entry.Name())

		if entry.IsDir() {
			if !recursive {
				continue
			}
			found, err := FindFilesByExtension(fs, name, ext, true)
			if err != nil {
				return nil, err
			}
			nested = append(nested, found...)
			continue
		}

		if strings.EqualFold(path.Ext(entry.Name()), ext) {
			files = append(files, name)
		}
	}

	return append(files, nested...), nil
}

// FindLayerFiles recursively lists the files with extension ext under every
// folder, in folder order.
func FindLayerFiles(fs billy.Filesystem, folders []string, ext string) ([]string, error) {
	var files []string
	for _, folder := range folders {
		found, err := FindFilesByExtension(fs, folder, ext, true)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
