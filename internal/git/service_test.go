package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// Helper function to set up a temporary repository acting as the remote
func setupTempGitRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "Failed to initialize Git repository")

	commitChanges(t, repo, dir, files, nil, "Initial commit")
	return dir, repo
}

// Helper function to clone the remote into a fresh working copy
func cloneRepo(t *testing.T, remoteDir string) string {
	t.Helper()

	dir := t.TempDir()
	_, err := git.PlainClone(dir, false, &git.CloneOptions{URL: remoteDir})
	require.NoError(t, err, "Failed to clone repository")
	return dir
}

// Helper function to create a file in a working copy
func createFile(t *testing.T, repoPath, filename, content string) {
	t.Helper()

	path := filepath.Join(repoPath, filepath.FromSlash(filename))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "Failed to create file")
}

// Helper function to write, remove and commit files
func commitChanges(t *testing.T, repo *git.Repository, repoPath string, files map[string]string, removed []string, message string) {
	t.Helper()

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		createFile(t, repoPath, name, content)
		_, err := worktree.Add(name)
		require.NoError(t, err, "Failed to stage file")
	}

	for _, name := range removed {
		_, err := worktree.Remove(name)
		require.NoError(t, err, "Failed to remove file")
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err, "Failed to commit changes")
}

func readFile(t *testing.T, repoPath, filename string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(filename)))
	require.NoError(t, err)
	return string(data)
}

func newTestService(t *testing.T, localDir string) *Service {
	t.Helper()

	service := NewService(vcs.NewMemoryHaveStore(), Options{RemoteName: "origin", MaxRetries: 1}, loggy.NewNoopLogger())
	require.NoError(t, service.Open(localDir))
	return service
}

func TestGitService(t *testing.T) {
	ctx := context.Background()

	t.Run("NotInitialized", func(t *testing.T) {
		service := NewService(nil, Options{}, loggy.NewNoopLogger())

		_, err := service.FileStatuses(ctx, []string{"a.lyr"})
		assert.ErrorIs(t, err, ErrRepoNotInitialized)

		_, err = service.Pull(ctx, []string{"a.lyr"}, nil)
		assert.ErrorIs(t, err, ErrRepoNotInitialized)

		_, err = service.Filesystem()
		assert.ErrorIs(t, err, ErrRepoNotInitialized)
	})

	t.Run("HasGitRepo", func(t *testing.T) {
		remoteDir, _ := setupTempGitRepo(t, map[string]string{"README.md": "# Test\n"})
		service := NewService(nil, Options{}, loggy.NewNoopLogger())

		assert.True(t, service.HasGitRepo(remoteDir))
		assert.False(t, service.HasGitRepo(t.TempDir()))
	})

	t.Run("UnknownRemote", func(t *testing.T) {
		remoteDir, _ := setupTempGitRepo(t, map[string]string{"README.md": "# Test\n"})
		localDir := cloneRepo(t, remoteDir)

		service := NewService(nil, Options{RemoteName: "upstream"}, loggy.NewNoopLogger())
		require.NoError(t, service.Open(localDir))

		_, err := service.FileStatuses(ctx, []string{"README.md"})
		assert.ErrorIs(t, err, ErrRemoteNotFound)
	})

	t.Run("UnknownBranch", func(t *testing.T) {
		remoteDir, _ := setupTempGitRepo(t, map[string]string{"README.md": "# Test\n"})
		localDir := cloneRepo(t, remoteDir)

		service := NewService(nil, Options{Branch: "release"}, loggy.NewNoopLogger())
		require.NoError(t, service.Open(localDir))

		_, err := service.FileStatuses(ctx, []string{"README.md"})
		assert.ErrorIs(t, err, ErrBranchMissing)
	})

	t.Run("StatusAndPull", func(t *testing.T) {
		remoteDir, remote := setupTempGitRepo(t, map[string]string{
			"Objects/tree.cgf":      "tree v1",
			"Objects/rock.cgf":      "rock v1",
			"Levels/Forest/a.lyr":   "a v1",
			"Levels/Forest/old.lyr": "old",
		})
		localDir := cloneRepo(t, remoteDir)
		service := newTestService(t, localDir)

		paths := []string{
			"Objects/tree.cgf",
			"Objects/rock.cgf",
			"Levels/Forest/a.lyr",
			"Levels/Forest/old.lyr",
			"Levels/Forest/Sub/new.lyr",
			"Levels/Forest/local.lyr",
		}

		statuses, err := service.FileStatuses(ctx, paths)
		require.NoError(t, err)
		assert.Equal(t, vcs.StatusTracked, statuses["Objects/tree.cgf"].Status)
		assert.Equal(t, vcs.StatusNone, statuses["Levels/Forest/Sub/new.lyr"].Status)

		commitChanges(t, remote, remoteDir, map[string]string{
			"Objects/tree.cgf":          "tree v2",
			"Objects/rock.cgf":          "rock v2",
			"Levels/Forest/Sub/new.lyr": "new",
		}, []string{"Levels/Forest/old.lyr"}, "Update level")

		createFile(t, localDir, "Objects/rock.cgf", "rock edited here")
		createFile(t, localDir, "Levels/Forest/local.lyr", "mine")

		statuses, err = service.FileStatuses(ctx, paths)
		require.NoError(t, err)
		assert.Equal(t, vcs.StatusTracked|vcs.StatusUpdatedRemotely, statuses["Objects/tree.cgf"].Status)
		assert.Equal(t, vcs.StatusTracked|vcs.StatusUpdatedRemotely|vcs.StatusModifiedLocally|vcs.StatusConflicted,
			statuses["Objects/rock.cgf"].Status)
		assert.Equal(t, vcs.StatusTracked, statuses["Levels/Forest/a.lyr"].Status)
		assert.Equal(t, vcs.StatusTracked|vcs.StatusDeletedRemotely, statuses["Levels/Forest/old.lyr"].Status)
		assert.Equal(t, vcs.StatusTracked|vcs.StatusUpdatedRemotely, statuses["Levels/Forest/Sub/new.lyr"].Status)
		assert.Equal(t, vcs.StatusAddedLocally, statuses["Levels/Forest/local.lyr"].Status)
		assert.NotEmpty(t, statuses["Objects/tree.cgf"].RemoteHash)
		assert.Empty(t, statuses["Levels/Forest/old.lyr"].RemoteHash)

		result, err := service.Pull(ctx, []string{"Objects/tree.cgf", "Objects/rock.cgf"}, []string{"Levels/Forest"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Objects/tree.cgf", "Levels/Forest/Sub/new.lyr"}, result.Updated)
		assert.Equal(t, []string{"Levels/Forest/old.lyr"}, result.Removed)
		assert.Equal(t, []string{"Objects/rock.cgf"}, result.Skipped)
		assert.Equal(t, []string{"Levels/Forest"}, result.Folders)

		assert.Equal(t, "tree v2", readFile(t, localDir, "Objects/tree.cgf"))
		assert.Equal(t, "new", readFile(t, localDir, "Levels/Forest/Sub/new.lyr"))
		assert.Equal(t, "rock edited here", readFile(t, localDir, "Objects/rock.cgf"))
		assert.Equal(t, "mine", readFile(t, localDir, "Levels/Forest/local.lyr"))
		assert.NoFileExists(t, filepath.Join(localDir, "Levels", "Forest", "old.lyr"))

		statuses, err = service.FileStatuses(ctx, paths)
		require.NoError(t, err)
		assert.Equal(t, vcs.StatusTracked, statuses["Objects/tree.cgf"].Status)
		assert.Equal(t, vcs.StatusTracked, statuses["Levels/Forest/Sub/new.lyr"].Status)
		assert.Equal(t, vcs.StatusNone, statuses["Levels/Forest/old.lyr"].Status, "pulled deletions stay deleted")
		assert.True(t, statuses["Objects/rock.cgf"].Status.Has(vcs.StatusConflicted))
	})

	t.Run("PullWithNothingRequested", func(t *testing.T) {
		remoteDir, _ := setupTempGitRepo(t, map[string]string{"README.md": "# Test\n"})
		service := newTestService(t, cloneRepo(t, remoteDir))

		result, err := service.Pull(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Updated)
		assert.Empty(t, result.Removed)
	})

	t.Run("PullMissingFolder", func(t *testing.T) {
		remoteDir, remote := setupTempGitRepo(t, map[string]string{"README.md": "# Test\n"})
		localDir := cloneRepo(t, remoteDir)
		service := newTestService(t, localDir)

		commitChanges(t, remote, remoteDir, map[string]string{"Levels/Desert/d.lyr": "desert"}, nil, "Add desert")

		result, err := service.Pull(ctx, nil, []string{"Levels/Desert", "Levels/Swamp"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Levels/Desert/d.lyr"}, result.Updated)
		assert.Equal(t, "desert", readFile(t, localDir, "Levels/Desert/d.lyr"))
	})
}
