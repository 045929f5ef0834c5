package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/store"
)

// fakeStore is an in-memory ObjectStore for exercising transfer functions.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (f *fakeStore) List(ctx context.Context, prefix string) <-chan store.Entry {
	ch := make(chan store.Entry)
	close(ch)
	return ch
}

func (f *fakeStore) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()

	if !ok {
		return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteNotFound)
	}
	n, werr := w.Write(data)
	return int64(n), werr
}

func (f *fakeStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.uploads[key] = data
	f.mu.Unlock()
	return nil
}

func items(n int) []ckpttypes.WorkItem {
	out := make([]ckpttypes.WorkItem, n)
	for i := range out {
		out[i] = ckpttypes.WorkItem{
			Key:  fmt.Sprintf("run42/file-%03d.bin", i),
			Path: filepath.Join("out", fmt.Sprintf("file-%03d.bin", i)),
		}
	}
	return out
}

func TestNewExecutor_ConcurrencyFloor(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, NewExecutor(0).concurrency)
	assert.Equal(t, DefaultConcurrency, NewExecutor(-5).concurrency)
	assert.Equal(t, 3, NewExecutor(3).concurrency)
}

func TestExecute_OneOutcomePerItem(t *testing.T) {
	work := items(25)
	exec := NewExecutor(4)

	outcomes := exec.Execute(context.Background(), work, func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		return 1, nil
	})

	require.Len(t, outcomes, len(work))
	for i, o := range outcomes {
		assert.Equal(t, work[i].Key, o.Item.Key)
		assert.Equal(t, ckpttypes.StatusSuccess, o.Status)
	}
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	const limit = 4
	var inflight, peak atomic.Int64

	exec := NewExecutor(limit)
	outcomes := exec.Execute(context.Background(), items(50), func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	})

	require.Len(t, outcomes, 50)
	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestExecute_FaultIsolation(t *testing.T) {
	boom := syncerrors.NewError("download", syncerrors.ErrRemoteTransport)
	work := items(10)

	exec := NewExecutor(4)
	outcomes := exec.Execute(context.Background(), work, func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		if item.Key == work[3].Key || item.Key == work[7].Key {
			return 0, boom
		}
		return 5, nil
	})

	report := ckpttypes.Aggregate(outcomes)
	assert.Equal(t, 8, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, int64(40), report.Bytes)
	assert.Equal(t, ckpttypes.StatusFailure, outcomes[3].Status)
	assert.Equal(t, boom, outcomes[3].Err)
}

func TestExecute_OrderIndependence(t *testing.T) {
	work := items(30)
	fn := func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		if item.Key == work[5].Key {
			return 0, errors.New("flaky")
		}
		return 2, nil
	}

	serial := NewExecutor(1).Execute(context.Background(), work, fn)
	parallel := NewExecutor(8).Execute(context.Background(), work, fn)

	serialReport := ckpttypes.Aggregate(serial)
	parallelReport := ckpttypes.Aggregate(parallel)

	assert.Equal(t, serialReport.Succeeded, parallelReport.Succeeded)
	assert.Equal(t, serialReport.Failed, parallelReport.Failed)
	assert.Equal(t, serialReport.Bytes, parallelReport.Bytes)
}

func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int64
	release := make(chan struct{})

	work := items(20)
	done := make(chan []ckpttypes.Outcome)
	go func() {
		exec := NewExecutor(2)
		done <- exec.Execute(ctx, work, func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
			started.Add(1)
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return 0, syncerrors.NewKeyError("transfer", item.Key, syncerrors.ErrCancelled)
			}
		})
	}()

	// Let a couple of workers start, then cancel and release.
	for started.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(release)

	outcomes := <-done
	require.Len(t, outcomes, len(work))

	report := ckpttypes.Aggregate(outcomes)
	assert.Positive(t, report.Cancelled)
	assert.Equal(t, len(work), report.Succeeded+report.Failed+report.Cancelled)

	for _, o := range outcomes {
		if o.Status == ckpttypes.StatusCancelled {
			assert.True(t, syncerrors.IsCancelled(o.Err))
		}
	}
}

func TestExecute_EmptyItems(t *testing.T) {
	exec := NewExecutor(4)
	outcomes := exec.Execute(context.Background(), nil, func(ctx context.Context, item ckpttypes.WorkItem) (int64, error) {
		t.Fatal("should not be called")
		return 0, nil
	})
	assert.Empty(t, outcomes)
}

func TestDownload(t *testing.T) {
	st := newFakeStore()
	st.objects["run42/model.bin"] = []byte("weights")

	memfs := billy.NewInMemoryFS()
	fn := Download(st, memfs)

	n, err := fn(context.Background(), ckpttypes.WorkItem{
		Key:  "run42/model.bin",
		Path: filepath.Join("out", "ckpt", "model.bin"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	data, err := memfs.ReadFile(filepath.Join("out", "ckpt", "model.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), data)
}

func TestDownload_RemoteNotFound(t *testing.T) {
	st := newFakeStore()
	memfs := billy.NewInMemoryFS()
	fn := Download(st, memfs)

	_, err := fn(context.Background(), ckpttypes.WorkItem{
		Key:  "run42/gone.bin",
		Path: filepath.Join("out", "gone.bin"),
	})
	require.Error(t, err)
	assert.True(t, syncerrors.IsRemoteNotFound(err))
}

func TestDownload_ConcurrentSharedParent(t *testing.T) {
	st := newFakeStore()
	for i := 0; i < 16; i++ {
		st.objects[fmt.Sprintf("run42/f%d.bin", i)] = bytes.Repeat([]byte("x"), i+1)
	}

	memfs := billy.NewInMemoryFS()
	work := make([]ckpttypes.WorkItem, 16)
	for i := range work {
		work[i] = ckpttypes.WorkItem{
			Key:  fmt.Sprintf("run42/f%d.bin", i),
			Path: filepath.Join("out", "shared", fmt.Sprintf("f%d.bin", i)),
		}
	}

	outcomes := NewExecutor(8).Execute(context.Background(), work, Download(st, memfs))

	report := ckpttypes.Aggregate(outcomes)
	assert.Equal(t, 16, report.Succeeded)
}

func TestUpload(t *testing.T) {
	st := newFakeStore()
	memfs := billy.NewInMemoryFS()
	require.NoError(t, memfs.WriteFile("model.bin", []byte("weights"), 0o644))

	fn := Upload(st, memfs)
	n, err := fn(context.Background(), ckpttypes.WorkItem{
		Key:  "run42/model.bin",
		Path: "model.bin",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, []byte("weights"), st.uploads["run42/model.bin"])
}

func TestUpload_MissingFile(t *testing.T) {
	st := newFakeStore()
	memfs := billy.NewInMemoryFS()

	fn := Upload(st, memfs)
	_, err := fn(context.Background(), ckpttypes.WorkItem{
		Key:  "run42/missing.bin",
		Path: "missing.bin",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerrors.ErrLocalRead)
}
