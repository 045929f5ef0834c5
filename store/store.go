// Package store defines the capability interface the sync engine consumes
// to talk to a remote, hierarchically-keyed object store.
//
// Concrete backends live in the s3store and hubstore subpackages. The engine
// never binds to a vendor client directly; everything it needs from a remote
// is expressed here.
package store

import (
	"context"
	"io"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
)

// Entry is one element of a listing stream. Exactly one of Object or Err is
// meaningful: a failed listing delivers a final Entry with Err set and then
// closes the channel.
type Entry struct {
	// Object is the listed object, including pseudo-directory markers
	Object ckpttypes.Object

	// Err reports a listing failure
	Err error
}

// ObjectStore abstracts listing and byte transfer against a remote backend.
//
// List returns a finite, lazily-produced stream of objects under prefix.
// The stream is consumed once and is not restartable; callers that need to
// iterate twice must materialize it. Pseudo-directory markers are included
// so the caller can filter them. Ordering is backend-defined and must not
// be relied upon. The channel is closed when the listing is exhausted,
// fails, or ctx is cancelled.
//
// Download streams the payload of key into w and returns the number of
// bytes written. A key observed at listing time may vanish by fetch time;
// that case fails with ErrRemoteNotFound. Network and backend faults fail
// with ErrRemoteTransport; write faults on w with ErrLocalWrite.
//
// Upload stores size bytes read from r under key. Read faults fail with
// ErrLocalRead, backend faults with ErrRemoteTransport. Backends without
// write support fail with ErrNotSupported.
type ObjectStore interface {
	List(ctx context.Context, prefix string) <-chan Entry
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}
