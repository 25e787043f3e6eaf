package filegroup

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/beevik/etree"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/go-multierror"
)

// AssetResolver reads asset metadata files and lists the data files they
// describe. A metadata file looks like:
//
//	<AssetMetadata version="1" type="Mesh">
//	  <Files>
//	    <File path="tree.cgf"/>
//	    <File path="tree.mtl"/>
//	  </Files>
//	</AssetMetadata>
//
// File paths are relative to the folder holding the metadata file.
type AssetResolver struct {
	fs billy.Filesystem
}

// NewAssetResolver creates a resolver reading from fs, which is rooted at the project root
func NewAssetResolver(fs billy.Filesystem) *AssetResolver {
	return &AssetResolver{fs: fs}
}

// Resolve returns the data files listed by the metadata file at mainFile.
// A metadata file that does not exist locally has no dependents.
func (r *AssetResolver) Resolve(mainFile string) ([]string, error) {
	data, err := util.ReadFile(r.fs, mainFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading asset metadata %s: %w", mainFile, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing asset metadata %s: %w", mainFile, err)
	}

	root := doc.SelectElement("AssetMetadata")
	if root == nil {
		return nil, fmt.Errorf("parsing asset metadata %s: missing AssetMetadata element", mainFile)
	}

	dir := path.Dir(CleanPath(mainFile))
	var files []string
	for _, el := range root.FindElements("./Files/File") {
		rel := el.SelectAttrValue("path", "")
		if rel == "" {
			continue
		}
		files = append(files, CleanPath(path.Join(dir, rel)))
	}

	return files, nil
}

// FromAssets builds one resolved group per metadata file. Every path yields a
// group; a group whose metadata could not be read holds only its main file and
// the read errors are returned combined.
func FromAssets(resolver Resolver, metadataPaths []string) ([]Group, error) {
	var result *multierror.Error

	groups := make([]Group, 0, len(metadataPaths))
	for _, p := range metadataPaths {
		g := New(p, resolver)
		if err := g.Update(); err != nil {
			result = multierror.Append(result, err)
		}
		groups = append(groups, g)
	}

	return groups, result.ErrorOrNil()
}
