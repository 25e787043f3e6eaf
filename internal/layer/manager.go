package layer

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/scanner"
)

// Manager is the registry of loaded layers, keyed by project-relative path.
// A layer file looks like:
//
//	<ObjectLayer>
//	  <Layer Name="Forest" GUID="{...}">
//	    ...
//	  </Layer>
//	</ObjectLayer>
type Manager struct {
	mu     sync.Mutex
	fs     billy.Filesystem
	layers map[string]*Layer
	logger *loggy.Logger
}

// NewManager creates a manager reading layer files from fs, which is rooted at the project root
func NewManager(fs billy.Filesystem, logger *loggy.Logger) *Manager {
	return &Manager{
		fs:     fs,
		layers: make(map[string]*Layer),
		logger: logger,
	}
}

// ImportFromFile parses the layer file at p and registers it. A freshly
// imported layer is marked modified; importing a known path reloads it.
func (m *Manager) ImportFromFile(p string) (Handle, error) {
	l, err := m.Load(p)
	if err != nil {
		return nil, err
	}
	l.SetModified(true)
	return l, nil
}

// LoadFolders registers every layer file under folders as unmodified
func (m *Manager) LoadFolders(folders []string, ext string) ([]*Layer, error) {
	files, err := scanner.FindLayerFiles(m.fs, folders, ext)
	if err != nil {
		return nil, err
	}

	layers := make([]*Layer, 0, len(files))
	for _, f := range files {
		l, err := m.Load(f)
		if err != nil {
			return nil, err
		}
		l.SetModified(false)
		layers = append(layers, l)
	}

	m.logger.Debug("Loaded layers", "folders", folders, "count", len(layers))
	return layers, nil
}

// Layer returns the registered layer at p
func (m *Manager) Layer(p string) (*Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[filegroup.CleanPath(p)]
	return l, ok
}

// Layers returns every registered layer ordered by path
func (m *Manager) Layers() []*Layer {
	m.mu.Lock()
	defer m.mu.Unlock()

	layers := make([]*Layer, 0, len(m.layers))
	for _, l := range m.layers {
		layers = append(layers, l)
	}
	sort.Slice(layers, func(i, j int) bool {
		return layers[i].path < layers[j].path
	})
	return layers
}

// Load parses the layer file at p and registers it, keeping the modified flag
// of a layer that was already registered
func (m *Manager) Load(p string) (*Layer, error) {
	p = filegroup.CleanPath(p)

	data, err := util.ReadFile(m.fs, p)
	if err != nil {
		return nil, fmt.Errorf("reading layer %s: %w", p, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing layer %s: %w", p, err)
	}

	root := doc.SelectElement("ObjectLayer")
	if root == nil {
		return nil, fmt.Errorf("parsing layer %s: missing ObjectLayer element", p)
	}

	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	var guid string
	if el := root.SelectElement("Layer"); el != nil {
		name = el.SelectAttrValue("Name", name)
		guid = el.SelectAttrValue("GUID", "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[p]
	if !ok {
		l = &Layer{path: p}
		m.layers[p] = l
	}

	l.mu.Lock()
	l.name = name
	l.guid = guid
	l.mu.Unlock()

	return l, nil
}
