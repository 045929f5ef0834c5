// Package transfer executes planned work items against a remote store with
// bounded concurrency and per-item fault isolation.
package transfer

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/store"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 8

// TransferFunc moves the payload for a single work item and returns the
// number of bytes transferred. Implementations must be safe for concurrent
// use across items.
type TransferFunc func(ctx context.Context, item ckpttypes.WorkItem) (int64, error)

// Executor runs work items through a bounded worker pool. One item's failure
// never affects another: each item resolves to exactly one outcome.
type Executor struct {
	concurrency int
	tracker     ckpttypes.ProgressTracker
}

// NewExecutor creates an executor with the given pool size. Values below 1
// fall back to DefaultConcurrency.
func NewExecutor(concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Executor{concurrency: concurrency}
}

// WithTracker attaches a progress tracker that receives cumulative updates
// after each completed item.
func (e *Executor) WithTracker(t ckpttypes.ProgressTracker) *Executor {
	e.tracker = t
	return e
}

// Execute runs fn for every item and returns one outcome per item, in item
// order. Cancellation stops dispatching new items; items never started are
// reported as cancelled, items already in flight run to completion or fail
// with the context error.
func (e *Executor) Execute(
	ctx context.Context,
	items []ckpttypes.WorkItem,
	fn TransferFunc,
) []ckpttypes.Outcome {
	outcomes := make([]ckpttypes.Outcome, len(items))

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, e.concurrency)
		done      atomic.Int64
		bytes     atomic.Int64
	)

	total := len(items)

	for i, item := range items {
		select {
		case <-ctx.Done():
			// Mark this and every remaining item cancelled without starting it.
			for j := i; j < len(items); j++ {
				outcomes[j] = ckpttypes.Outcome{
					Item:   items[j],
					Status: ckpttypes.StatusCancelled,
					Err: syncerrors.NewKeyError("transfer", items[j].Key, syncerrors.ErrCancelled).
						WithPath(items[j].Path),
				}
			}
			wg.Wait()
			if e.tracker != nil {
				e.tracker.Complete()
			}
			return outcomes
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, it ckpttypes.WorkItem) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcomes[idx] = e.runOne(ctx, it, fn)
			if outcomes[idx].Status == ckpttypes.StatusSuccess {
				bytes.Add(outcomes[idx].Bytes)
			}
			if e.tracker != nil {
				e.tracker.Update(int(done.Add(1)), total, bytes.Load())
			}
		}(i, item)
	}

	wg.Wait()
	if e.tracker != nil {
		e.tracker.Complete()
	}
	return outcomes
}

// runOne resolves a single item to its terminal outcome.
func (e *Executor) runOne(
	ctx context.Context,
	item ckpttypes.WorkItem,
	fn TransferFunc,
) ckpttypes.Outcome {
	if err := ctx.Err(); err != nil {
		return ckpttypes.Outcome{
			Item:   item,
			Status: ckpttypes.StatusCancelled,
			Err: syncerrors.NewKeyError("transfer", item.Key, syncerrors.ErrCancelled).
				WithPath(item.Path),
		}
	}

	n, err := fn(ctx, item)
	if err != nil {
		status := ckpttypes.StatusFailure
		if syncerrors.IsCancelled(err) || ctx.Err() != nil {
			status = ckpttypes.StatusCancelled
		}
		return ckpttypes.Outcome{
			Item:   item,
			Status: status,
			Err:    err,
		}
	}

	return ckpttypes.Outcome{
		Item:   item,
		Status: ckpttypes.StatusSuccess,
		Bytes:  n,
	}
}

// Download returns a TransferFunc that streams remote objects to the local
// filesystem. Parent directories are created as needed; concurrent items
// sharing a parent rely on MkdirAll being idempotent.
func Download(st store.ObjectStore, fsys fs.Filesystem) TransferFunc {
	return func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		dir := filepath.Dir(item.Path)
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return 0, syncerrors.NewKeyError("fetch", item.Key, syncerrors.ErrLocalWrite).
				WithPath(item.Path).
				WithMessage("creating directory " + dir + ": " + err.Error())
		}

		f, err := fsys.Create(item.Path)
		if err != nil {
			return 0, syncerrors.NewKeyError("fetch", item.Key, syncerrors.ErrLocalWrite).
				WithPath(item.Path).
				WithMessage("creating file: " + err.Error())
		}

		n, err := st.Download(ctx, item.Key, f)
		if cerr := f.Close(); cerr != nil && err == nil {
			err = syncerrors.NewKeyError("fetch", item.Key, syncerrors.ErrLocalWrite).
				WithPath(item.Path).
				WithMessage("closing file: " + cerr.Error())
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Upload returns a TransferFunc that streams local files to the remote
// store, sniffing the content type from the payload head.
func Upload(st store.ObjectStore, fsys fs.Filesystem) TransferFunc {
	return func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		f, err := fsys.Open(item.Path)
		if err != nil {
			return 0, syncerrors.NewKeyError("push", item.Key, syncerrors.ErrLocalRead).
				WithPath(item.Path).
				WithMessage("opening file: " + err.Error())
		}
		defer func() { _ = f.Close() }()

		info, err := fsys.Stat(item.Path)
		if err != nil {
			return 0, syncerrors.NewKeyError("push", item.Key, syncerrors.ErrLocalRead).
				WithPath(item.Path).
				WithMessage("stat file: " + err.Error())
		}
		size := info.Size()

		contentType, err := sniffContentType(f)
		if err != nil {
			return 0, syncerrors.NewKeyError("push", item.Key, syncerrors.ErrLocalRead).
				WithPath(item.Path).
				WithMessage("detecting content type: " + err.Error())
		}

		if err := st.Upload(ctx, item.Key, f, size, contentType); err != nil {
			return 0, err
		}
		return size, nil
	}
}

// sniffContentType detects the content type from the payload head, rewinding
// the file afterwards. Falls back to extension-based lookup, then to
// application/octet-stream.
func sniffContentType(f fs.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String(), nil
		}
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.Name())); ct != "" {
		return ct, nil
	}
	return "application/octet-stream", nil
}
