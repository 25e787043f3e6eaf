package vcs

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/reconcile"
)

// Provider is the StatusProvider backed by a Backend. Refreshed statuses are
// kept in a TTL cache for HasStatus and, when a repository is set, persisted
// for the status command.
type Provider struct {
	backend Backend
	repo    StatusRepository
	cache   *cache.Cache
	logger  *loggy.Logger
}

// NewProvider creates a provider whose cached statuses expire after ttl
func NewProvider(backend Backend, ttl time.Duration, logger *loggy.Logger) *Provider {
	return &Provider{
		backend: backend,
		cache:   cache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

// SetStatusRepository enables persisting refreshed statuses
func (p *Provider) SetStatusRepository(repo StatusRepository) {
	p.repo = repo
}

// RefreshStatus fetches fresh status for every file of groups
func (p *Provider) RefreshStatus(ctx context.Context, groups []filegroup.Group) error {
	paths := uniquePaths(reconcile.AllFiles(groups))
	if len(paths) == 0 {
		return nil
	}

	p.logger.Debug("Refreshing file status", "groups", len(groups), "files", len(paths))

	statuses, err := p.backend.FileStatuses(ctx, paths)
	if err != nil {
		return fmt.Errorf("refreshing status: %w", err)
	}

	batch := make([]FileStatus, 0, len(statuses))
	for _, path := range paths {
		st, ok := statuses[path]
		if !ok {
			st = FileStatus{Path: path, Status: StatusNone, UpdatedAt: time.Now()}
		}
		p.cache.Set(path, st, cache.DefaultExpiration)
		batch = append(batch, st)
	}

	if p.repo != nil {
		if err := p.repo.SaveStatuses(ctx, batch); err != nil {
			p.logger.Warn("Failed to persist file status", "error", err)
		}
	}

	return nil
}

// HasStatus reports whether the status of group carries a flag in mask
func (p *Provider) HasStatus(group filegroup.Group, mask Status) bool {
	return p.GroupStatus(group).Has(mask)
}

// GroupStatus combines the cached statuses of the files of group. Only the
// main file decides whether the group is deleted remotely; a dependent
// deleted remotely makes the group updated remotely instead. Files without a
// cached status contribute nothing.
func (p *Provider) GroupStatus(group filegroup.Group) Status {
	mainFile := group.MainFile()

	var status Status
	for _, path := range group.Files() {
		st, ok := p.Status(path)
		if !ok {
			continue
		}
		if path != mainFile && st.Status.Has(StatusDeletedRemotely) {
			status |= (st.Status &^ StatusDeletedRemotely) | StatusUpdatedRemotely
			continue
		}
		status |= st.Status
	}
	return status
}

// Status returns the cached status of path
func (p *Provider) Status(path string) (FileStatus, bool) {
	v, ok := p.cache.Get(path)
	if !ok {
		return FileStatus{}, false
	}
	return v.(FileStatus), true
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	unique := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		unique = append(unique, path)
	}
	return unique
}
