// Package vcs defines the version-control capabilities the synchronizer needs:
// per-file status queries and pulling files from the remote.
package vcs

import (
	"context"
	"strings"
	"time"

	"github.com/tildaslashalef/assetsync/internal/filegroup"
)

// Status is a set of status flags for one file
type Status uint32

const (
	// StatusTracked marks a file known to the repository
	StatusTracked Status = 1 << iota
	// StatusUpdatedRemotely marks a file whose remote revision is newer than the local one
	StatusUpdatedRemotely
	// StatusDeletedRemotely marks a file removed on the remote
	StatusDeletedRemotely
	// StatusModifiedLocally marks a file edited in the local copy
	StatusModifiedLocally
	// StatusAddedLocally marks a local file unknown to the remote
	StatusAddedLocally
	// StatusConflicted marks a local edit that collides with a remote change
	StatusConflicted
)

// StatusNone is the status of an untracked, unchanged file
const StatusNone Status = 0

// StatusRemoteChange matches files that a pull would touch
const StatusRemoteChange = StatusUpdatedRemotely | StatusDeletedRemotely

var statusNames = []struct {
	flag Status
	name string
}{
	{StatusTracked, "tracked"},
	{StatusUpdatedRemotely, "updated-remotely"},
	{StatusDeletedRemotely, "deleted-remotely"},
	{StatusModifiedLocally, "modified-locally"},
	{StatusAddedLocally, "added-locally"},
	{StatusConflicted, "conflicted"},
}

// Has reports whether s carries any flag in mask
func (s Status) Has(mask Status) bool {
	return s&mask != 0
}

// String returns the flag names joined with "|"
func (s Status) String() string {
	if s == StatusNone {
		return "untracked"
	}

	var names []string
	for _, n := range statusNames {
		if s&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// FileStatus is the status of one file together with the blob hashes it was derived from
type FileStatus struct {
	Path       string    `json:"path"`
	Status     Status    `json:"status"`
	LocalHash  string    `json:"local_hash,omitempty"`
	RemoteHash string    `json:"remote_hash,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PullResult reports what a pull did
type PullResult struct {
	Files   []string // explicit files requested
	Folders []string // folders requested
	Updated []string // written from the remote
	Removed []string // deleted locally because the remote deleted them
	Skipped []string // left alone because of local edits
}

// StatusProvider refreshes and answers per-group status queries
type StatusProvider interface {
	// RefreshStatus fetches fresh status for every file of groups
	RefreshStatus(ctx context.Context, groups []filegroup.Group) error

	// HasStatus reports whether the status of group carries a flag in mask.
	// A group is deleted remotely only when its main file is.
	HasStatus(group filegroup.Group, mask Status) bool
}

// PullClient brings files and folders up to date with the remote
type PullClient interface {
	// Pull updates the explicit files and everything under folders. Either list may be empty.
	Pull(ctx context.Context, files, folders []string) (*PullResult, error)
}

// Backend computes fresh statuses straight from the repository
type Backend interface {
	FileStatuses(ctx context.Context, paths []string) (map[string]FileStatus, error)
}

// HaveStore remembers which blob of each file was last synced into the local copy
type HaveStore interface {
	// GetHave returns the recorded blob hash for path
	GetHave(ctx context.Context, path string) (hash string, ok bool, err error)

	// SetHave records hash as the synced blob of path. An empty hash records
	// that the file was synced as deleted.
	SetHave(ctx context.Context, path, hash string) error

	// ListHave returns recorded paths under prefix, "" for all
	ListHave(ctx context.Context, prefix string) ([]string, error)
}
