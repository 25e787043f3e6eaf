package synchronizer

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/reconcile"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// stage is one step of the sync pipeline
type stage int

const (
	stageRefreshStatus stage = iota
	stageFilter
	stageFoldersOnly
	stagePartition
	stageBroadPull
	stageRefreshGroups
	stageExcise
	stageNarrowPull
	stageDone
)

var stageNames = [...]string{
	stageRefreshStatus: "refresh_status",
	stageFilter:        "filter",
	stageFoldersOnly:   "folders_only",
	stagePartition:     "partition",
	stageBroadPull:     "broad_pull",
	stageRefreshGroups: "refresh_groups",
	stageExcise:        "excise",
	stageNarrowPull:    "narrow_pull",
	stageDone:          "done",
}

func (s stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// session is the state of one sync, owned by a single goroutine
type session struct {
	ctx     context.Context
	status  vcs.StatusProvider
	puller  vcs.PullClient
	logger  *loggy.Logger
	groups  []filegroup.Group
	folders []string

	// originalFiles is AllFiles of the groups before the broad pull
	originalFiles []string
	// boundary splits groups into not deleted [0, boundary) and deleted [boundary, len)
	boundary int

	result *Result
	errs   *multierror.Error
}

func (s *session) run() {
	for st := stageRefreshStatus; st != stageDone; {
		next := s.step(st)
		s.logger.Debug("Sync stage complete", "stage", st.String(), "next", next.String(), "groups", len(s.groups))
		st = next
	}

	s.result.Groups = s.groups
	s.result.Err = s.errs.ErrorOrNil()
}

func (s *session) step(st stage) stage {
	switch st {
	case stageRefreshStatus:
		s.record(s.status.RefreshStatus(s.ctx, s.groups), "refreshing status")
		return stageFilter

	case stageFilter:
		s.groups, _ = stablePartition(s.groups, func(g filegroup.Group) bool {
			return s.status.HasStatus(g, vcs.StatusRemoteChange)
		})
		s.result.Changed = len(s.groups)
		if len(s.groups) == 0 {
			return stageFoldersOnly
		}
		return stagePartition

	case stageFoldersOnly:
		if len(s.folders) > 0 {
			s.pull(nil, s.folders)
		}
		return stageDone

	case stagePartition:
		kept, deleted := stablePartition(s.groups, func(g filegroup.Group) bool {
			return !s.status.HasStatus(g, vcs.StatusDeletedRemotely)
		})
		s.boundary = len(kept)
		s.groups = append(kept, deleted...)
		s.originalFiles = reconcile.AllFiles(s.groups)
		return stageBroadPull

	case stageBroadPull:
		s.pull(s.originalFiles, s.folders)
		return stageRefreshGroups

	case stageRefreshGroups:
		for _, g := range s.groups {
			s.record(g.Update(), "updating group "+g.MainFile())
		}
		return stageExcise

	case stageExcise:
		s.result.Deleted = len(s.groups) - s.boundary
		s.groups = s.groups[:s.boundary]
		if len(s.groups) == 0 {
			return stageDone
		}
		return stageNarrowPull

	case stageNarrowPull:
		missing := reconcile.FindMissing(reconcile.AllFiles(s.groups), s.originalFiles)
		if len(missing) > 0 {
			s.result.Discovered = missing
			s.pull(missing, nil)
		}
		return stageDone
	}

	return stageDone
}

// pull issues one pull and folds its outcome into the result
func (s *session) pull(files, folders []string) {
	s.result.Pulls = append(s.result.Pulls, PullCall{Files: files, Folders: folders})

	res, err := s.puller.Pull(s.ctx, files, folders)
	s.record(err, "pulling files")
	if res == nil {
		return
	}

	s.result.PulledFiles += len(res.Updated) + len(res.Removed)
	s.result.Skipped = append(s.result.Skipped, res.Skipped...)
}

func (s *session) record(err error, action string) {
	if err == nil {
		return
	}

	s.logger.Warn("Sync step failed", "action", action, "error", err)
	s.errs = multierror.Append(s.errs, fmt.Errorf("%s: %w", action, err))
}

// stablePartition splits groups into those matching keep and the rest,
// preserving relative order in both. The input is not modified.
func stablePartition(groups []filegroup.Group, keep func(filegroup.Group) bool) (matched, rest []filegroup.Group) {
	matched = make([]filegroup.Group, 0, len(groups))
	for _, g := range groups {
		if keep(g) {
			matched = append(matched, g)
		} else {
			rest = append(rest, g)
		}
	}
	return matched, rest
}
