package synchronizer

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/ulid"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// Synchronizer runs sync sessions against injected status and pull capabilities
type Synchronizer struct {
	status   vcs.StatusProvider
	puller   vcs.PullClient
	assets   filegroup.Resolver
	recorder Recorder
	logger   *loggy.Logger
}

// New creates a new synchronizer. assets resolves the dependents of asset
// metadata files for SyncAssets.
func New(status vcs.StatusProvider, puller vcs.PullClient, assets filegroup.Resolver, logger *loggy.Logger) *Synchronizer {
	return &Synchronizer{
		status: status,
		puller: puller,
		assets: assets,
		logger: logger,
	}
}

// SetRecorder enables persisting a summary of every session started with Sync
func (s *Synchronizer) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// Recorder returns the configured recorder, nil when sessions are not persisted
func (s *Synchronizer) Recorder() Recorder {
	return s.recorder
}

// Run executes one session to completion and returns its result. The groups
// slice is copied; the groups themselves are updated in place.
func (s *Synchronizer) Run(ctx context.Context, groups []filegroup.Group, folders []string) *Result {
	return s.run(ctx, KindGroups, groups, folders)
}

func (s *Synchronizer) run(ctx context.Context, kind Kind, groups []filegroup.Group, folders []string) *Result {
	sessionID := loggy.GetSessionID(ctx)
	if sessionID == "" {
		sessionID = ulid.SessionID()
		ctx = loggy.WithSessionID(ctx, sessionID)
	}

	logger := s.logger.With("session_id", sessionID)
	logger.Info("Starting sync", "kind", kind, "groups", len(groups), "folders", len(folders))

	sess := &session{
		ctx:     ctx,
		status:  s.status,
		puller:  s.puller,
		logger:  logger,
		groups:  append([]filegroup.Group(nil), groups...),
		folders: append([]string(nil), folders...),
		result: &Result{
			SessionID: sessionID,
			Kind:      kind,
			Requested: len(groups),
			Folders:   append([]string(nil), folders...),
			StartedAt: time.Now(),
		},
	}
	sess.run()

	result := sess.result
	result.CompletedAt = time.Now()

	logger.Info("Sync complete",
		"changed", result.Changed,
		"deleted", result.Deleted,
		"pulls", len(result.Pulls),
		"discovered", len(result.Discovered),
		"success", result.Success(),
		"duration", result.Duration())

	return result
}

// Sync runs a session on its own goroutine and calls onDone exactly once
// with the result. onDone may be nil.
func (s *Synchronizer) Sync(ctx context.Context, groups []filegroup.Group, folders []string, onDone func(*Result)) {
	s.start(ctx, KindGroups, groups, folders, onDone)
}

// SyncAssets syncs the assets described by the given metadata files
func (s *Synchronizer) SyncAssets(ctx context.Context, metadataPaths, folders []string, onDone func(*Result)) {
	s.SyncPaths(ctx, metadataPaths, nil, folders, onDone)
}

// SyncPaths syncs the assets described by metadataPaths together with plain
// files, each file as its own group. Unreadable metadata is reported in the
// result; the asset is still synced as a single file.
func (s *Synchronizer) SyncPaths(ctx context.Context, metadataPaths, files, folders []string, onDone func(*Result)) {
	go func() {
		groups, err := filegroup.FromAssets(s.assets, metadataPaths)
		if err != nil {
			s.logger.Warn("Some asset metadata could not be read", "error", err)
		}
		groups = append(groups, filegroup.Singles(files)...)

		result := s.run(ctx, KindAssets, groups, folders)
		if err != nil {
			result.Err = multierror.Append(result.Err, err)
		}
		s.Record(ctx, result.Record())
		if onDone != nil {
			onDone(result)
		}
	}()
}

// SyncGroup syncs a single group
func (s *Synchronizer) SyncGroup(ctx context.Context, group filegroup.Group, onDone func(*Result)) {
	s.start(ctx, KindGroups, []filegroup.Group{group}, nil, onDone)
}

// SyncFolders pulls folders without any explicit group
func (s *Synchronizer) SyncFolders(ctx context.Context, folders []string, onDone func(*Result)) {
	s.start(ctx, KindFolders, nil, folders, onDone)
}

func (s *Synchronizer) start(ctx context.Context, kind Kind, groups []filegroup.Group, folders []string, onDone func(*Result)) {
	go func() {
		result := s.run(ctx, kind, groups, folders)
		s.Record(ctx, result.Record())
		if onDone != nil {
			onDone(result)
		}
	}()
}

// Record persists rec when a recorder is configured. Failures are logged only.
func (s *Synchronizer) Record(ctx context.Context, rec *SessionRecord) {
	if s.recorder == nil {
		return
	}

	if err := s.recorder.RecordSession(ctx, rec); err != nil {
		s.logger.Warn("Failed to record sync session", "session_id", rec.ID, "error", err)
	}
}
