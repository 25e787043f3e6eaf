// Package layer keeps the in-process model of level layer files and syncs
// them, importing layers that only appeared locally through the sync.
package layer

import (
	"sync"
)

// Handle is an imported layer
type Handle interface {
	SetModified(modified bool)
}

// Importer loads a layer file into the layer model
type Importer interface {
	ImportFromFile(path string) (Handle, error)
}

// Layer is one layer file known to the model
type Layer struct {
	mu       sync.Mutex
	name     string
	path     string
	guid     string
	modified bool
}

// Name returns the layer name stored in the file, or the file name without
// its extension when the file does not carry one
func (l *Layer) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Path returns the project-relative path of the layer file
func (l *Layer) Path() string {
	return l.path
}

// GUID returns the layer GUID, empty when the file has none
func (l *Layer) GUID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.guid
}

// SetModified marks the layer as having unsaved changes
func (l *Layer) SetModified(modified bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modified = modified
}

// IsModified reports whether the layer has unsaved changes
func (l *Layer) IsModified() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modified
}
