// Package git provides the repository backend for assetsync: per-file status
// against the remote-tracking branch and file-level pulls into the worktree.
//
// Files are synced individually rather than by moving HEAD. The blob last
// synced for each file is kept in a have list; files never synced fall back to
// their HEAD revision.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-multierror"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/vcs"
	"golang.org/x/time/rate"
)

// Options configures how the service talks to the remote
type Options struct {
	RemoteName       string
	Branch           string // empty follows the branch HEAD points at
	MaxRetries       int
	FetchesPerMinute int // zero or less disables limiting
}

// Service provides status and pull operations on one repository
type Service struct {
	mu      sync.Mutex
	logger  *loggy.Logger
	opts    Options
	have    vcs.HaveStore
	limiter *rate.Limiter
	repo    *git.Repository
	fs      billy.Filesystem
}

// NewService creates a new Git service. A nil have store keeps the have list in memory.
func NewService(have vcs.HaveStore, opts Options, logger *loggy.Logger) *Service {
	if have == nil {
		have = vcs.NewMemoryHaveStore()
	}
	if opts.RemoteName == "" {
		opts.RemoteName = git.DefaultRemoteName
	}

	return &Service{
		logger:  logger,
		opts:    opts,
		have:    have,
		limiter: newLimiter(opts.FetchesPerMinute),
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}

// Open opens the repository at repoPath
func (s *Service) Open(repoPath string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("opening git repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.repo = repo
	s.fs = worktree.Filesystem
	return nil
}

// HasGitRepo checks if the provided path contains a valid Git repository
func (s *Service) HasGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	if err != nil {
		s.logger.Debug("Not a valid Git repository", "path", path, "error", err)
		return false
	}

	return true
}

// Filesystem returns the worktree filesystem, rooted at the project root
func (s *Service) Filesystem() (billy.Filesystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRepo(); err != nil {
		return nil, err
	}
	return s.fs, nil
}

func (s *Service) ensureRepo() error {
	if s.repo == nil {
		return ErrRepoNotInitialized
	}
	return nil
}

// FileStatuses fetches from the remote and returns the status of each path
func (s *Service) FileStatuses(ctx context.Context, paths []string) (map[string]vcs.FileStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRepo(); err != nil {
		return nil, err
	}

	if err := s.fetch(ctx); err != nil {
		return nil, err
	}

	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]vcs.FileStatus, len(paths))
	for _, p := range paths {
		state, err := s.fileState(ctx, snap, filegroup.CleanPath(p))
		if err != nil {
			return nil, err
		}
		status := state.fileStatus()
		status.Path = p
		statuses[p] = status
	}

	s.logger.Debug("Computed file statuses", "files", len(paths))
	return statuses, nil
}

// Pull fetches from the remote and brings the explicit files and every file
// under folders up to date. Files edited locally are skipped. Per-file
// failures do not stop the pull and are returned combined.
func (s *Service) Pull(ctx context.Context, files, folders []string) (*vcs.PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRepo(); err != nil {
		return nil, err
	}

	result := &vcs.PullResult{
		Files:   append([]string(nil), files...),
		Folders: append([]string(nil), folders...),
	}

	if err := s.fetch(ctx); err != nil {
		return result, err
	}

	snap, err := s.snapshot()
	if err != nil {
		return result, err
	}

	targets, err := s.pullTargets(ctx, snap, files, folders)
	if err != nil {
		return result, err
	}

	var errs *multierror.Error
	for _, p := range targets {
		if err := s.pullFile(ctx, snap, p, result); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	s.logger.Info("Pulled files",
		"requested_files", len(files),
		"requested_folders", len(folders),
		"updated", len(result.Updated),
		"removed", len(result.Removed),
		"skipped", len(result.Skipped))

	return result, errs.ErrorOrNil()
}

// fetch updates the remote-tracking references, retrying transient failures
func (s *Service) fetch(ctx context.Context) error {
	operation := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := s.repo.FetchContext(ctx, &git.FetchOptions{RemoteName: s.opts.RemoteName})
		switch {
		case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
			return nil
		case errors.Is(err, git.ErrRemoteNotFound):
			return backoff.Permanent(WrapError(ErrRemoteNotFound, s.opts.RemoteName))
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		}

		s.logger.Warn("Fetch failed", "remote", s.opts.RemoteName, "error", err)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(s.opts.MaxRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return WrapError(err, "fetching from remote")
	}

	return nil
}

// snapshot holds the trees a status is computed against
type snapshot struct {
	head   *object.Tree // nil before the first commit
	remote *object.Tree
}

func (s *Service) snapshot() (*snapshot, error) {
	branch, err := s.trackedBranch()
	if err != nil {
		return nil, err
	}

	remoteRef, err := s.repo.Reference(plumbing.NewRemoteReferenceName(s.opts.RemoteName, branch), true)
	if err != nil {
		return nil, WrapError(ErrBranchMissing, fmt.Sprintf("resolving %s/%s", s.opts.RemoteName, branch))
	}

	remote, err := s.commitTree(remoteRef.Hash())
	if err != nil {
		return nil, err
	}

	snap := &snapshot{remote: remote}

	head, err := s.repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return snap, nil
	case err != nil:
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	if snap.head, err = s.commitTree(head.Hash()); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) trackedBranch() (string, error) {
	if s.opts.Branch != "" {
		return s.opts.Branch, nil
	}

	ref, err := s.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	if ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
		return ref.Target().Short(), nil
	}
	return "", WrapError(ErrBranchMissing, "HEAD is detached")
}

func (s *Service) commitTree(hash plumbing.Hash) (*object.Tree, error) {
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit object: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting commit tree: %w", err)
	}
	return tree, nil
}

// fileState captures the three revisions of one file
type fileState struct {
	local, remote, base       plumbing.Hash
	inLocal, inRemote, inBase bool
	status                    vcs.Status
}

func (st *fileState) fileStatus() vcs.FileStatus {
	fs := vcs.FileStatus{Status: st.status, UpdatedAt: time.Now()}
	if st.inLocal {
		fs.LocalHash = st.local.String()
	}
	if st.inRemote {
		fs.RemoteHash = st.remote.String()
	}
	return fs
}

func (s *Service) fileState(ctx context.Context, snap *snapshot, p string) (*fileState, error) {
	st := &fileState{}
	st.remote, st.inRemote = blobHash(snap.remote, p)

	var err error
	if st.local, st.inLocal, err = s.localHash(p); err != nil {
		return nil, err
	}
	if st.base, st.inBase, err = s.baseHash(ctx, snap, p); err != nil {
		return nil, err
	}

	if st.inBase || st.inRemote {
		st.status |= vcs.StatusTracked
	}

	matchesRemote := st.inLocal && st.inRemote && st.local == st.remote
	switch {
	case st.inRemote && (!st.inBase || st.remote != st.base) && !matchesRemote:
		st.status |= vcs.StatusUpdatedRemotely
	case !st.inRemote && st.inBase:
		st.status |= vcs.StatusDeletedRemotely
	}

	switch {
	case st.inLocal && st.inBase && st.local != st.base:
		st.status |= vcs.StatusModifiedLocally
	case st.inLocal && !st.inBase && !matchesRemote:
		st.status |= vcs.StatusAddedLocally
	}

	if st.status.Has(vcs.StatusModifiedLocally|vcs.StatusAddedLocally) && st.status.Has(vcs.StatusRemoteChange) {
		st.status |= vcs.StatusConflicted
	}

	return st, nil
}

func blobHash(tree *object.Tree, p string) (plumbing.Hash, bool) {
	if tree == nil || p == "" {
		return plumbing.ZeroHash, false
	}

	entry, err := tree.FindEntry(p)
	if err != nil || !entry.Mode.IsFile() {
		return plumbing.ZeroHash, false
	}
	return entry.Hash, true
}

func (s *Service) localHash(p string) (plumbing.Hash, bool, error) {
	info, err := s.fs.Lstat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return plumbing.ZeroHash, false, nil
	}

	f, err := s.fs.Open(p)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("reading %s: %w", p, err)
	}

	return plumbing.ComputeHash(plumbing.BlobObject, content), true, nil
}

func (s *Service) baseHash(ctx context.Context, snap *snapshot, p string) (plumbing.Hash, bool, error) {
	hash, ok, err := s.have.GetHave(ctx, p)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("reading have list: %w", err)
	}
	if ok {
		if hash == "" {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.NewHash(hash), true, nil
	}

	h, in := blobHash(snap.head, p)
	return h, in, nil
}

// pullTargets lists the explicit files followed by every known file under
// each folder: files in the remote tree, in HEAD, or in the have list.
func (s *Service) pullTargets(ctx context.Context, snap *snapshot, files, folders []string) ([]string, error) {
	seen := make(map[string]struct{})
	var targets []string
	add := func(p string) {
		if _, ok := seen[p]; ok || p == "" {
			return
		}
		seen[p] = struct{}{}
		targets = append(targets, p)
	}

	for _, f := range files {
		add(filegroup.CleanPath(f))
	}

	for _, folder := range folders {
		folder = filegroup.CleanPath(folder)

		found := make(map[string]struct{})
		for _, tree := range []*object.Tree{snap.remote, snap.head} {
			if err := collectTreeFiles(tree, folder, found); err != nil {
				return nil, err
			}
		}

		prefix := ""
		if folder != "" {
			prefix = folder + "/"
		}
		haves, err := s.have.ListHave(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("reading have list: %w", err)
		}
		for _, p := range haves {
			found[p] = struct{}{}
		}

		sorted := make([]string, 0, len(found))
		for p := range found {
			sorted = append(sorted, p)
		}
		sort.Strings(sorted)
		for _, p := range sorted {
			add(p)
		}
	}

	return targets, nil
}

func collectTreeFiles(tree *object.Tree, folder string, found map[string]struct{}) error {
	if tree == nil {
		return nil
	}

	sub := tree
	if folder != "" {
		var err error
		sub, err = tree.Tree(folder)
		if errors.Is(err, object.ErrDirectoryNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading folder %s: %w", folder, err)
		}
	}

	return sub.Files().ForEach(func(f *object.File) error {
		found[path.Join(folder, f.Name)] = struct{}{}
		return nil
	})
}

func (s *Service) pullFile(ctx context.Context, snap *snapshot, p string, result *vcs.PullResult) error {
	st, err := s.fileState(ctx, snap, p)
	if err != nil {
		return err
	}

	switch {
	case st.status.Has(vcs.StatusConflicted):
		s.logger.Warn("Skipping locally edited file", "path", p, "status", st.status.String())
		result.Skipped = append(result.Skipped, p)

	case st.status.Has(vcs.StatusDeletedRemotely):
		if st.inLocal {
			if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing %s: %w", p, err)
			}
			result.Removed = append(result.Removed, p)
		}
		if err := s.have.SetHave(ctx, p, ""); err != nil {
			return fmt.Errorf("recording %s: %w", p, err)
		}

	case st.status.Has(vcs.StatusUpdatedRemotely):
		if err := s.writeBlob(snap.remote, p); err != nil {
			return err
		}
		if err := s.have.SetHave(ctx, p, st.remote.String()); err != nil {
			return fmt.Errorf("recording %s: %w", p, err)
		}
		result.Updated = append(result.Updated, p)

	case st.inLocal && st.inRemote && st.local == st.remote && (!st.inBase || st.base != st.remote):
		// already matches the remote; only the have list is behind
		if err := s.have.SetHave(ctx, p, st.remote.String()); err != nil {
			return fmt.Errorf("recording %s: %w", p, err)
		}
	}

	return nil
}

func (s *Service) writeBlob(tree *object.Tree, p string) error {
	file, err := tree.File(p)
	if err != nil {
		return fmt.Errorf("reading remote %s: %w", p, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return fmt.Errorf("reading remote %s: %w", p, err)
	}
	defer reader.Close()

	if dir := path.Dir(p); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating folder %s: %w", dir, err)
		}
	}

	perm := os.FileMode(0644)
	if mode, err := file.Mode.ToOSFileMode(); err == nil && mode.Perm() != 0 && mode.IsRegular() {
		perm = mode.Perm()
	}

	out, err := s.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", p, err)
	}

	return out.Close()
}
