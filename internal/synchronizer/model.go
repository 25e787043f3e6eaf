// Package synchronizer reconciles file groups with the remote: it skips groups
// that are already consistent, pulls the rest, refreshes them from disk and
// pulls again for files that only became known after the first pull.
package synchronizer

import (
	"time"

	"github.com/tildaslashalef/assetsync/internal/filegroup"
)

// Kind names the entry point a session was started from
type Kind string

const (
	// KindGroups is a sync of caller-built file groups
	KindGroups Kind = "groups"
	// KindAssets is a sync of asset metadata files
	KindAssets Kind = "assets"
	// KindFolders is a sync of folders only
	KindFolders Kind = "folders"
	// KindLayers is a sync of layer files
	KindLayers Kind = "layers"
)

// PullCall is one pull request issued by a session
type PullCall struct {
	Files   []string `json:"files"`
	Folders []string `json:"folders"`
}

// Result describes a finished session. Err combines every failure reported by
// the capabilities; the pipeline runs to completion regardless.
type Result struct {
	SessionID   string            `json:"session_id"`
	Kind        Kind              `json:"kind"`
	Requested   int               `json:"requested"`  // groups passed in
	Changed     int               `json:"changed"`    // groups with a remote change
	Deleted     int               `json:"deleted"`    // groups deleted remotely
	Folders     []string          `json:"folders"`    // folder scope
	Pulls       []PullCall        `json:"pulls"`      // in issue order
	PulledFiles int               `json:"pulled"`     // files written or removed
	Skipped     []string          `json:"skipped"`    // left alone because of local edits
	Discovered  []string          `json:"discovered"` // files only known after the broad pull
	Groups      []filegroup.Group `json:"-"`          // groups still present after excision
	Err         error             `json:"-"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Kept returns the number of changed groups that were not deleted remotely
func (r *Result) Kept() int {
	return r.Changed - r.Deleted
}

// Success reports whether no capability failed
func (r *Result) Success() bool {
	return r.Err == nil
}

// Duration returns how long the session ran
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// SessionRecord is the persisted summary of one session
type SessionRecord struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Requested    int       `json:"requested"`
	Kept         int       `json:"kept"`
	Deleted      int       `json:"deleted"`
	Pulls        int       `json:"pulls"`
	PulledFiles  int       `json:"pulled_files"`
	Discovered   int       `json:"discovered"`
	Imported     int       `json:"imported"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Record summarizes the result for persistence
func (r *Result) Record() *SessionRecord {
	rec := &SessionRecord{
		ID:          r.SessionID,
		Kind:        r.Kind,
		Requested:   r.Requested,
		Kept:        r.Kept(),
		Deleted:     r.Deleted,
		Pulls:       len(r.Pulls),
		PulledFiles: r.PulledFiles,
		Discovered:  len(r.Discovered),
		Success:     r.Success(),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Err != nil {
		rec.ErrorMessage = r.Err.Error()
	}
	return rec
}
