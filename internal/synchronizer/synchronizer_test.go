package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// fakeStatus answers HasStatus from a fixed status per main file
type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]vcs.Status
	err      error
	refresh  [][]string
}

func (f *fakeStatus) RefreshStatus(ctx context.Context, groups []filegroup.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	mains := make([]string, 0, len(groups))
	for _, g := range groups {
		mains = append(mains, g.MainFile())
	}
	f.refresh = append(f.refresh, mains)
	return f.err
}

func (f *fakeStatus) HasStatus(group filegroup.Group, mask vcs.Status) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[group.MainFile()].Has(mask)
}

// staticBackend is a vcs.Backend answering with fixed statuses
type staticBackend map[string]vcs.FileStatus

func (b staticBackend) FileStatuses(ctx context.Context, paths []string) (map[string]vcs.FileStatus, error) {
	statuses := make(map[string]vcs.FileStatus, len(paths))
	for _, p := range paths {
		if st, ok := b[p]; ok {
			statuses[p] = st
		}
	}
	return statuses, nil
}

// MockPullClient is a mock implementation of vcs.PullClient
type MockPullClient struct {
	mock.Mock
}

func (m *MockPullClient) Pull(ctx context.Context, files, folders []string) (*vcs.PullResult, error) {
	args := m.Called(ctx, files, folders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vcs.PullResult), args.Error(1)
}

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordSession(ctx context.Context, rec *SessionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecorder) ListSessions(ctx context.Context, kind Kind, limit int) ([]*SessionRecord, error) {
	args := m.Called(ctx, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SessionRecord), args.Error(1)
}

// stubGroup switches to its next file list on Update
type stubGroup struct {
	main  string
	files []string
	next  []string
	err   error
}

func (g *stubGroup) MainFile() string { return g.main }

func (g *stubGroup) Files() []string { return append([]string(nil), g.files...) }

func (g *stubGroup) Update() error {
	if g.err != nil {
		return g.err
	}
	if g.next != nil {
		g.files = g.next
	}
	return nil
}

func mains(groups []filegroup.Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.MainFile())
	}
	return out
}

func pulled(files ...string) *vcs.PullResult {
	return &vcs.PullResult{Files: files, Updated: files}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := loggy.NewNoopLogger()

	t.Run("empty input pulls nothing", func(t *testing.T) {
		status := &fakeStatus{}
		puller := new(MockPullClient)

		result := New(status, puller, nil, logger).Run(ctx, nil, nil)

		assert.Empty(t, result.Pulls)
		assert.Empty(t, result.Groups)
		assert.Equal(t, 0, result.Changed)
		assert.True(t, result.Success())
		assert.Len(t, status.refresh, 1)
		puller.AssertNotCalled(t, "Pull", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("folders only when no group changed", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"a.lyr": vcs.StatusTracked}}
		puller := new(MockPullClient)
		folders := []string{"Levels/Forest"}

		puller.On("Pull", mock.Anything, []string(nil), folders).Return(pulled("Levels/Forest/b.lyr"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, filegroup.Singles([]string{"a.lyr"}), folders)

		require.Len(t, result.Pulls, 1)
		assert.Nil(t, result.Pulls[0].Files)
		assert.Equal(t, folders, result.Pulls[0].Folders)
		assert.Equal(t, 1, result.PulledFiles)
		assert.Empty(t, result.Groups)
		puller.AssertExpectations(t)
	})

	t.Run("unchanged group without folders is a no-op", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"a.lyr": vcs.StatusTracked | vcs.StatusModifiedLocally}}
		puller := new(MockPullClient)

		result := New(status, puller, nil, logger).Run(ctx, filegroup.Singles([]string{"a.lyr"}), nil)

		assert.Empty(t, result.Pulls)
		assert.Equal(t, 1, result.Requested)
		assert.Equal(t, 0, result.Changed)
		puller.AssertNotCalled(t, "Pull", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("discovered dependents get a second pull", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"a.cgf": vcs.StatusTracked | vcs.StatusUpdatedRemotely}}
		puller := new(MockPullClient)
		group := &stubGroup{main: "a.cgf", files: []string{"a.cgf"}, next: []string{"a.cgf", "a.cgf.mtl"}}

		puller.On("Pull", mock.Anything, []string{"a.cgf"}, []string(nil)).Return(pulled("a.cgf"), nil).Once()
		puller.On("Pull", mock.Anything, []string{"a.cgf.mtl"}, []string(nil)).Return(pulled("a.cgf.mtl"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Equal(t, []PullCall{
			{Files: []string{"a.cgf"}},
			{Files: []string{"a.cgf.mtl"}},
		}, result.Pulls)
		assert.Equal(t, []string{"a.cgf.mtl"}, result.Discovered)
		assert.Equal(t, 2, result.PulledFiles)
		assert.Equal(t, []string{"a.cgf"}, mains(result.Groups))
		assert.True(t, result.Success())
		puller.AssertExpectations(t)
	})

	t.Run("deleted group is pulled once and excised", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"gone.lyr": vcs.StatusTracked | vcs.StatusDeletedRemotely}}
		puller := new(MockPullClient)
		group := &stubGroup{main: "gone.lyr", files: []string{"gone.lyr"}, next: []string{"gone.lyr", "gone.lyr.bak"}}

		puller.On("Pull", mock.Anything, []string{"gone.lyr"}, []string(nil)).
			Return(&vcs.PullResult{Removed: []string{"gone.lyr"}}, nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Len(t, result.Pulls, 1)
		assert.Equal(t, 1, result.Changed)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, 0, result.Kept())
		assert.Empty(t, result.Groups)
		assert.Empty(t, result.Discovered)
		puller.AssertExpectations(t)
	})

	t.Run("kept groups stay in order and deleted groups are left out of the narrow pull", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{
			"a.lyr": vcs.StatusTracked | vcs.StatusUpdatedRemotely,
			"b.lyr": vcs.StatusTracked | vcs.StatusDeletedRemotely,
			"c.cgf": vcs.StatusTracked | vcs.StatusUpdatedRemotely,
			"d.lyr": vcs.StatusTracked,
		}}
		puller := new(MockPullClient)
		groups := []filegroup.Group{
			&stubGroup{main: "a.lyr", files: []string{"a.lyr"}},
			&stubGroup{main: "b.lyr", files: []string{"b.lyr"}, next: []string{"b.lyr", "b.extra"}},
			&stubGroup{main: "c.cgf", files: []string{"c.cgf"}, next: []string{"c.cgf", "c.dds"}},
			&stubGroup{main: "d.lyr", files: []string{"d.lyr"}},
		}
		folders := []string{"Levels"}

		puller.On("Pull", mock.Anything, []string{"a.lyr", "c.cgf", "b.lyr"}, folders).Return(pulled("a.lyr", "c.cgf"), nil).Once()
		puller.On("Pull", mock.Anything, []string{"c.dds"}, []string(nil)).Return(pulled("c.dds"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, groups, folders)

		assert.Equal(t, []string{"a.lyr", "c.cgf"}, mains(result.Groups))
		assert.Equal(t, 3, result.Changed)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, []string{"c.dds"}, result.Discovered)
		assert.Len(t, groups, 4, "caller slice is untouched")
		assert.Equal(t, "b.lyr", groups[1].MainFile())
		puller.AssertExpectations(t)
	})

	t.Run("discovery ignores case of files already pulled", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"A.cgf": vcs.StatusTracked | vcs.StatusUpdatedRemotely}}
		puller := new(MockPullClient)
		group := &stubGroup{main: "A.cgf", files: []string{"A.cgf"}, next: []string{"a.CGF"}}

		puller.On("Pull", mock.Anything, []string{"A.cgf"}, []string(nil)).Return(pulled("A.cgf"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Len(t, result.Pulls, 1)
		assert.Empty(t, result.Discovered)
		puller.AssertExpectations(t)
	})

	t.Run("failures are collected without changing the flow", func(t *testing.T) {
		status := &fakeStatus{
			statuses: map[string]vcs.Status{"a.cgf": vcs.StatusTracked | vcs.StatusUpdatedRemotely},
			err:      errors.New("status backend down"),
		}
		puller := new(MockPullClient)
		group := &stubGroup{main: "a.cgf", files: []string{"a.cgf"}, next: []string{"a.cgf", "a.mtl"}}

		puller.On("Pull", mock.Anything, []string{"a.cgf"}, []string(nil)).Return(nil, errors.New("network error")).Once()
		puller.On("Pull", mock.Anything, []string{"a.mtl"}, []string(nil)).
			Return(&vcs.PullResult{Skipped: []string{"a.mtl"}}, nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Len(t, result.Pulls, 2)
		assert.False(t, result.Success())
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "status backend down")
		assert.Contains(t, result.Err.Error(), "network error")
		assert.Equal(t, []string{"a.mtl"}, result.Skipped)
		assert.Equal(t, 0, result.PulledFiles)
		puller.AssertExpectations(t)
	})

	t.Run("group update failure keeps the old files", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"a.cgf": vcs.StatusTracked | vcs.StatusUpdatedRemotely}}
		puller := new(MockPullClient)
		group := &stubGroup{main: "a.cgf", files: []string{"a.cgf"}, err: errors.New("unreadable")}

		puller.On("Pull", mock.Anything, []string{"a.cgf"}, []string(nil)).Return(pulled("a.cgf"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Len(t, result.Pulls, 1)
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "updating group a.cgf")
		puller.AssertExpectations(t)
	})

	t.Run("session id comes from the context", func(t *testing.T) {
		status := &fakeStatus{}
		puller := new(MockPullClient)

		result := New(status, puller, nil, logger).Run(loggy.WithSessionID(ctx, "session-1"), nil, nil)

		assert.Equal(t, "session-1", result.SessionID)
		assert.Equal(t, KindGroups, result.Kind)
		assert.False(t, result.CompletedAt.Before(result.StartedAt))
	})

	t.Run("asset with a dependent deleted remotely is kept for the narrow pull", func(t *testing.T) {
		backend := staticBackend{
			"a.cryasset": {Path: "a.cryasset", Status: vcs.StatusTracked | vcs.StatusUpdatedRemotely},
			"old.cgf":    {Path: "old.cgf", Status: vcs.StatusTracked | vcs.StatusDeletedRemotely},
		}
		status := vcs.NewProvider(backend, time.Minute, logger)
		puller := new(MockPullClient)
		group := &stubGroup{main: "a.cryasset", files: []string{"a.cryasset", "old.cgf"}, next: []string{"a.cryasset", "new.cgf"}}

		puller.On("Pull", mock.Anything, []string{"a.cryasset", "old.cgf"}, []string(nil)).
			Return(&vcs.PullResult{Updated: []string{"a.cryasset"}, Removed: []string{"old.cgf"}}, nil).Once()
		puller.On("Pull", mock.Anything, []string{"new.cgf"}, []string(nil)).Return(pulled("new.cgf"), nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Equal(t, 0, result.Deleted)
		assert.Equal(t, []string{"new.cgf"}, result.Discovered)
		assert.Equal(t, []string{"a.cryasset"}, mains(result.Groups))
		assert.True(t, result.Success())
		puller.AssertExpectations(t)
	})

	t.Run("asset deleted remotely through the status provider is excised", func(t *testing.T) {
		backend := staticBackend{
			"b.cryasset": {Path: "b.cryasset", Status: vcs.StatusTracked | vcs.StatusDeletedRemotely},
			"b.cgf":      {Path: "b.cgf", Status: vcs.StatusTracked | vcs.StatusDeletedRemotely},
		}
		status := vcs.NewProvider(backend, time.Minute, logger)
		puller := new(MockPullClient)
		group := &stubGroup{main: "b.cryasset", files: []string{"b.cryasset", "b.cgf"}, next: []string{"b.cryasset"}}

		puller.On("Pull", mock.Anything, []string{"b.cryasset", "b.cgf"}, []string(nil)).
			Return(&vcs.PullResult{Removed: []string{"b.cryasset", "b.cgf"}}, nil).Once()

		result := New(status, puller, nil, logger).Run(ctx, []filegroup.Group{group}, nil)

		assert.Equal(t, 1, result.Deleted)
		assert.Empty(t, result.Groups)
		assert.Len(t, result.Pulls, 1)
		puller.AssertExpectations(t)
	})
}

func TestStablePartition(t *testing.T) {
	groups := filegroup.Singles([]string{"a", "b", "c", "d", "e"})

	matched, rest := stablePartition(groups, func(g filegroup.Group) bool {
		return g.MainFile() != "b" && g.MainFile() != "d"
	})

	assert.Equal(t, []string{"a", "c", "e"}, mains(matched))
	assert.Equal(t, []string{"b", "d"}, mains(rest))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, mains(groups))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "refresh_status", stageRefreshStatus.String())
	assert.Equal(t, "narrow_pull", stageNarrowPull.String())
	assert.Equal(t, "stage(42)", stage(42).String())
}

func waitResult(t *testing.T, results <-chan *Result) *Result {
	t.Helper()

	select {
	case result := <-results:
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync to finish")
		return nil
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	logger := loggy.NewNoopLogger()

	t.Run("callback fires exactly once and the session is recorded", func(t *testing.T) {
		status := &fakeStatus{statuses: map[string]vcs.Status{"a.lyr": vcs.StatusTracked | vcs.StatusUpdatedRemotely}}
		puller := new(MockPullClient)
		recorder := new(MockRecorder)

		puller.On("Pull", mock.Anything, []string{"a.lyr"}, []string(nil)).Return(pulled("a.lyr"), nil).Once()
		recorder.On("RecordSession", mock.Anything, mock.MatchedBy(func(rec *SessionRecord) bool {
			return rec.Kind == KindGroups && rec.Kept == 1 && rec.Pulls == 1 && rec.Success
		})).Return(nil).Once()

		s := New(status, puller, nil, logger)
		s.SetRecorder(recorder)
		assert.Equal(t, recorder, s.Recorder())

		results := make(chan *Result, 2)
		s.Sync(ctx, filegroup.Singles([]string{"a.lyr"}), nil, func(r *Result) { results <- r })

		result := waitResult(t, results)
		assert.Equal(t, 1, result.PulledFiles)

		select {
		case <-results:
			t.Fatal("callback fired twice")
		case <-time.After(50 * time.Millisecond):
		}

		puller.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})

	t.Run("recorder failures do not fail the session", func(t *testing.T) {
		status := &fakeStatus{}
		puller := new(MockPullClient)
		recorder := new(MockRecorder)
		recorder.On("RecordSession", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		s := New(status, puller, nil, logger)
		s.SetRecorder(recorder)

		results := make(chan *Result, 1)
		s.SyncGroup(ctx, filegroup.Single("a.lyr"), func(r *Result) { results <- r })

		result := waitResult(t, results)
		assert.True(t, result.Success())
		recorder.AssertExpectations(t)
	})

	t.Run("nil callback is allowed", func(t *testing.T) {
		status := &fakeStatus{}
		puller := new(MockPullClient)
		recorder := new(MockRecorder)

		done := make(chan struct{})
		recorder.On("RecordSession", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { close(done) }).Once()

		s := New(status, puller, nil, logger)
		s.SetRecorder(recorder)
		s.Sync(ctx, nil, nil, nil)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for sync to finish")
		}
	})

	t.Run("SyncFolders", func(t *testing.T) {
		status := &fakeStatus{}
		puller := new(MockPullClient)
		folders := []string{"Levels/Desert"}

		puller.On("Pull", mock.Anything, []string(nil), folders).Return(pulled("Levels/Desert/d.lyr"), nil).Once()

		results := make(chan *Result, 1)
		New(status, puller, nil, logger).SyncFolders(ctx, folders, func(r *Result) { results <- r })

		result := waitResult(t, results)
		assert.Equal(t, KindFolders, result.Kind)
		assert.Len(t, result.Pulls, 1)
		puller.AssertExpectations(t)
	})

	t.Run("SyncAssets resolves metadata into groups", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "Objects/tree.cryasset", []byte(
			`<AssetMetadata version="1"><Files><File path="tree.cgf"/></Files></AssetMetadata>`), 0644))
		require.NoError(t, util.WriteFile(fs, "Objects/bad.cryasset", []byte("not xml <"), 0644))

		status := &fakeStatus{statuses: map[string]vcs.Status{
			"Objects/tree.cryasset": vcs.StatusTracked | vcs.StatusUpdatedRemotely,
		}}
		puller := new(MockPullClient)
		puller.On("Pull", mock.Anything, []string{"Objects/tree.cryasset", "Objects/tree.cgf"}, []string(nil)).
			Return(pulled("Objects/tree.cryasset"), nil).Once()

		results := make(chan *Result, 1)
		s := New(status, puller, filegroup.NewAssetResolver(fs), logger)
		s.SyncAssets(ctx, []string{"Objects/tree.cryasset", "Objects/bad.cryasset"}, nil, func(r *Result) { results <- r })

		result := waitResult(t, results)
		assert.Equal(t, KindAssets, result.Kind)
		assert.Equal(t, 2, result.Requested)
		assert.Equal(t, []string{"Objects/tree.cryasset"}, mains(result.Groups))
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "Objects/bad.cryasset")
		assert.Equal(t, []string{"Objects/bad.cryasset"}, status.refresh[0][1:])
		puller.AssertExpectations(t)
	})

	t.Run("SyncPaths reports unreadable metadata next to plain files", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "Objects/bad.cryasset", []byte("not xml <"), 0644))

		status := &fakeStatus{statuses: map[string]vcs.Status{
			"Levels/forest.lyr": vcs.StatusTracked | vcs.StatusUpdatedRemotely,
		}}
		puller := new(MockPullClient)
		puller.On("Pull", mock.Anything, []string{"Levels/forest.lyr"}, []string(nil)).
			Return(pulled("Levels/forest.lyr"), nil).Once()
		recorder := new(MockRecorder)
		recorder.On("RecordSession", mock.Anything, mock.MatchedBy(func(rec *SessionRecord) bool {
			return !rec.Success && rec.ErrorMessage != ""
		})).Return(nil).Once()

		results := make(chan *Result, 1)
		s := New(status, puller, filegroup.NewAssetResolver(fs), logger)
		s.SetRecorder(recorder)
		s.SyncPaths(ctx, []string{"Objects/bad.cryasset"}, []string{"Levels/forest.lyr"}, nil, func(r *Result) { results <- r })

		result := waitResult(t, results)
		assert.Equal(t, KindAssets, result.Kind)
		assert.Equal(t, []string{"Objects/bad.cryasset", "Levels/forest.lyr"}, status.refresh[0])
		assert.Equal(t, []string{"Levels/forest.lyr"}, mains(result.Groups))
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "Objects/bad.cryasset")
		puller.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})
}
