// Package ckptsync synchronizes machine-learning training checkpoints
// between a local filesystem and a remote object store.
//
// The Syncer drives a three-phase run: list the remote (or walk the local
// tree), plan one work item per object with a layout policy mapping keys to
// paths, then execute the transfers through a bounded worker pool. Each item
// resolves to exactly one outcome; a failed item never aborts the run, and
// the final Report accounts for every planned item.
//
// Backends plug in through the store.ObjectStore interface. The s3store
// package covers Amazon S3 and S3-compatible endpoints; the hubstore package
// covers read-only model-hub repositories.
//
// Example:
//
//	st, err := s3store.New(ctx, s3store.Config{Bucket: "training-ckpts"})
//	if err != nil {
//	    return err
//	}
//	syncer := ckptsync.New(st, ckptsync.WithConcurrency(16))
//	report, err := syncer.Fetch(ctx, "run42/ckpt-1000", "/data/out")
//	if err != nil {
//	    return err
//	}
//	if !report.Ok() {
//	    for _, f := range report.Failures() {
//	        log.Printf("failed: %s: %v", f.Item.Key, f.Err)
//	    }
//	}
package ckptsync
