// Package plan builds the ordered set of transfer work items for a run.
//
// The builder performs no I/O of its own beyond consuming the provided
// listing (for fetches) or walking the provided filesystem (for pushes).
package plan

import (
	"os"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/internal/layout"
	"github.com/parakeet-ml/ckptsync/store"
)

// Fetch consumes a remote listing and resolves one work item per non-marker
// key. Pseudo-directory markers are filtered before mapping. Keys that fail
// mapping (traversal, escape, flatten collision) do not abort the run; they
// are returned as failed outcomes so the final report still accounts for
// every listed object.
//
// A listing transport failure aborts planning: without the complete listing
// the work set is undefined.
func Fetch(
	listing <-chan store.Entry,
	prefix, root string,
	policy ckpttypes.LayoutPolicy,
) ([]ckpttypes.WorkItem, []ckpttypes.Outcome, error) {
	var items []ckpttypes.WorkItem
	var rejected []ckpttypes.Outcome

	// Flatten discards sub-paths, so distinct keys can resolve to the same
	// destination. First mapping wins; later collisions are rejected.
	taken := make(map[string]string)

	for entry := range listing {
		if entry.Err != nil {
			return nil, nil, syncerrors.NewError("plan", entry.Err).
				WithMessage("listing failed under prefix " + prefix)
		}
		obj := entry.Object
		if obj.IsMarker() {
			continue
		}

		dst, err := layout.Map(obj.Key, prefix, root, policy)
		if err != nil {
			rejected = append(rejected, ckpttypes.Outcome{
				Item:   ckpttypes.WorkItem{Key: obj.Key, Size: obj.Size},
				Status: ckpttypes.StatusFailure,
				Err:    err,
			})
			continue
		}

		if prev, ok := taken[dst]; ok {
			rejected = append(rejected, ckpttypes.Outcome{
				Item:   ckpttypes.WorkItem{Key: obj.Key, Path: dst, Size: obj.Size},
				Status: ckpttypes.StatusFailure,
				Err: syncerrors.NewKeyError("plan", obj.Key, syncerrors.ErrInvalidKey).
					WithPath(dst).
					WithMessage("destination collides with key " + prev),
			})
			continue
		}
		taken[dst] = obj.Key

		items = append(items, ckpttypes.WorkItem{
			Key:  obj.Key,
			Path: dst,
			Size: obj.Size,
		})
	}

	return items, rejected, nil
}

// Push walks the local checkpoint directory and produces one work item per
// regular file, keyed by the checkpoint prefix plus the file's path relative
// to localDir.
func Push(
	fsys fs.Filesystem,
	localDir, prefix string,
) ([]ckpttypes.WorkItem, error) {
	var items []ckpttypes.WorkItem

	err := fsys.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		key, err := layout.Key(p, localDir, prefix)
		if err != nil {
			return err
		}
		items = append(items, ckpttypes.WorkItem{
			Key:  key,
			Path: p,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, syncerrors.NewError("plan", syncerrors.ErrLocalRead).
			WithPath(localDir).
			WithMessage("walking checkpoint directory: " + err.Error())
	}

	return items, nil
}
