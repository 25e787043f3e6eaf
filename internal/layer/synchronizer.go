package layer

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/reconcile"
	"github.com/tildaslashalef/assetsync/internal/scanner"
	"github.com/tildaslashalef/assetsync/internal/synchronizer"
)

// Result is the outcome of a layer sync
type Result struct {
	Sync     *synchronizer.Result
	Imported []string
	// Err combines Sync.Err with scan and import failures
	Err error
}

// Success reports whether nothing failed
func (r *Result) Success() bool {
	return r.Err == nil
}

// Record summarizes the result for persistence
func (r *Result) Record() *synchronizer.SessionRecord {
	rec := r.Sync.Record()
	rec.Imported = len(r.Imported)
	rec.Success = r.Success()
	rec.ErrorMessage = ""
	if r.Err != nil {
		rec.ErrorMessage = r.Err.Error()
	}
	return rec
}

// Synchronizer syncs layers and imports layer files the sync brought in
type Synchronizer struct {
	sync     *synchronizer.Synchronizer
	fs       billy.Filesystem
	importer Importer
	ext      string
	logger   *loggy.Logger
}

// NewSynchronizer creates a layer synchronizer. fs is rooted at the project
// root and ext is the layer file extension, including the dot.
func NewSynchronizer(sync *synchronizer.Synchronizer, fs billy.Filesystem, importer Importer, ext string, logger *loggy.Logger) *Synchronizer {
	return &Synchronizer{
		sync:     sync,
		fs:       fs,
		importer: importer,
		ext:      ext,
		logger:   logger,
	}
}

// Run syncs the layers and folders, then imports every layer file found under
// folders that was not there before the sync
func (s *Synchronizer) Run(ctx context.Context, layers []*Layer, folders []string) *Result {
	var errs *multierror.Error

	original, scanErr := scanner.FindLayerFiles(s.fs, folders, s.ext)
	if scanErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("scanning layers before sync: %w", scanErr))
	}

	groups := make([]filegroup.Group, 0, len(layers))
	for _, l := range layers {
		groups = append(groups, filegroup.Single(l.Path()))
	}

	syncResult := s.sync.Run(ctx, groups, folders)
	syncResult.Kind = synchronizer.KindLayers
	if syncResult.Err != nil {
		errs = multierror.Append(errs, syncResult.Err)
	}

	result := &Result{Sync: syncResult}
	logger := s.logger.With("session_id", syncResult.SessionID)

	// Without the first scan every layer would look new.
	if scanErr == nil {
		current, err := scanner.FindLayerFiles(s.fs, folders, s.ext)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scanning layers after sync: %w", err))
		} else {
			for _, p := range reconcile.FindMissing(current, original) {
				logger.Info("Importing just downloaded layer file", "path", p)

				h, err := s.importer.ImportFromFile(p)
				if err != nil {
					logger.Warn("Failed to import layer file", "path", p, "error", err)
					errs = multierror.Append(errs, fmt.Errorf("importing layer %s: %w", p, err))
					continue
				}
				h.SetModified(false)
				result.Imported = append(result.Imported, p)
			}
		}
	}

	result.Err = errs.ErrorOrNil()
	return result
}

// Sync runs the layer sync on its own goroutine, records it and calls onDone
// exactly once with the result. onDone may be nil.
func (s *Synchronizer) Sync(ctx context.Context, layers []*Layer, folders []string, onDone func(*Result)) {
	go func() {
		result := s.Run(ctx, layers, folders)
		s.sync.Record(ctx, result.Record())
		if onDone != nil {
			onDone(result)
		}
	}()
}
