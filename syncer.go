package ckptsync

import (
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/rs/zerolog"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	"github.com/parakeet-ml/ckptsync/internal/transfer"
	"github.com/parakeet-ml/ckptsync/store"
)

// Syncer coordinates checkpoint transfers between a remote object store and
// the local filesystem. It is safe for concurrent use; each run is
// independent.
type Syncer struct {
	// store is the remote backend
	store store.ObjectStore

	// fs is the filesystem abstraction for local file operations
	fs fs.Filesystem

	// concurrency is the worker pool size per run
	concurrency int

	// layout maps remote keys to local paths
	layout ckpttypes.LayoutPolicy

	// logger receives per-run and per-item events
	logger zerolog.Logger

	// tracker receives progress updates, when configured
	tracker ckpttypes.ProgressTracker
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithConcurrency sets the worker pool size for transfer runs.
// Values below 1 are ignored; the default is 8.
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLayout sets the layout policy mapping remote keys to local paths.
// The default is LayoutSubfolder.
func WithLayout(p ckpttypes.LayoutPolicy) Option {
	return func(s *Syncer) {
		s.layout = p
	}
}

// WithFilesystem overrides the local filesystem abstraction.
// Useful for testing with an in-memory filesystem.
func WithFilesystem(fsys fs.Filesystem) Option {
	return func(s *Syncer) {
		s.fs = fsys
	}
}

// WithLogger sets the logger for run and item events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// WithProgressTracker attaches a tracker that receives cumulative progress
// updates as items complete.
func WithProgressTracker(t ckpttypes.ProgressTracker) Option {
	return func(s *Syncer) {
		s.tracker = t
	}
}

// New creates a Syncer over the given remote store with the provided
// options.
func New(st store.ObjectStore, opts ...Option) *Syncer {
	s := &Syncer{
		store:       st,
		fs:          billy.NewBaseOSFS(),
		concurrency: transfer.DefaultConcurrency,
		layout:      ckpttypes.LayoutSubfolder,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
