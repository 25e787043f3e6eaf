// Package filegroup models the unit of synchronization: a main file plus the
// files that travel with it.
package filegroup

import (
	"path"
	"path/filepath"
	"strings"
)

// Group is a logical asset made of a main file and its dependent files.
// Files returns the main file first, followed by the dependents, all as
// project-relative slash paths. Update re-derives the file list from what is
// currently on disk.
type Group interface {
	MainFile() string
	Files() []string
	Update() error
}

// Resolver derives the dependent files of a main file from the local copy
type Resolver interface {
	Resolve(mainFile string) ([]string, error)
}

// FileGroup is the concrete Group. A FileGroup without a Resolver is a
// single-file group whose file list never changes.
type FileGroup struct {
	main       string
	dependents []string
	resolver   Resolver
}

// New creates a group for mainFile whose dependents are resolved by resolver.
// The dependent list starts empty until Update is called.
func New(mainFile string, resolver Resolver) *FileGroup {
	return &FileGroup{
		main:     CleanPath(mainFile),
		resolver: resolver,
	}
}

// NewStatic creates a group with a fixed file list
func NewStatic(mainFile string, dependents ...string) *FileGroup {
	g := &FileGroup{main: CleanPath(mainFile)}
	g.setDependents(dependents)
	return g
}

// Single creates a group holding only mainFile
func Single(mainFile string) *FileGroup {
	return NewStatic(mainFile)
}

// Singles creates one single-file group per path
func Singles(paths []string) []Group {
	groups := make([]Group, 0, len(paths))
	for _, p := range paths {
		groups = append(groups, Single(p))
	}
	return groups
}

// MainFile returns the primary file of the group
func (g *FileGroup) MainFile() string {
	return g.main
}

// Files returns the main file followed by the dependent files
func (g *FileGroup) Files() []string {
	files := make([]string, 0, len(g.dependents)+1)
	files = append(files, g.main)
	return append(files, g.dependents...)
}

// Dependents returns the files listed alongside the main file
func (g *FileGroup) Dependents() []string {
	return append([]string(nil), g.dependents...)
}

// Update re-resolves the dependent files. On failure the previous list is kept.
func (g *FileGroup) Update() error {
	if g.resolver == nil {
		return nil
	}

	dependents, err := g.resolver.Resolve(g.main)
	if err != nil {
		return err
	}

	g.setDependents(dependents)
	return nil
}

// setDependents stores files in clean form, dropping duplicates and the main file
func (g *FileGroup) setDependents(files []string) {
	seen := map[string]struct{}{g.main: {}}
	g.dependents = g.dependents[:0]
	for _, f := range files {
		f = CleanPath(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		g.dependents = append(g.dependents, f)
	}
}

// CleanPath converts p to project-relative form: forward slashes, no leading
// "./" or "/", no trailing slash. The project root cleans to "".
func CleanPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimLeft(p, "/")
	if p == "." {
		return ""
	}
	return p
}
