// Package ckpttypes provides shared type definitions for checkpoint synchronization.
package ckpttypes

import (
	"fmt"
	"time"
)

// LayoutPolicy selects how remote object keys map to local paths.
// Exactly one policy applies to a synchronization run; it is supplied as
// configuration, never inferred from the listing.
type LayoutPolicy string

// Recognized layout policies
const (
	// LayoutFullMirror places each object at output root + full key,
	// preserving the entire hierarchy including the checkpoint prefix.
	LayoutFullMirror LayoutPolicy = "full-mirror"

	// LayoutStripPrefix places each object at output root + key with the
	// checkpoint prefix removed, preserving sub-structure under the checkpoint.
	LayoutStripPrefix LayoutPolicy = "strip-prefix"

	// LayoutFlatten places each object at output root + last prefix segment +
	// basename, discarding intermediate structure. Objects sharing a basename
	// under different sub-paths collide; colliding items are rejected at plan
	// time rather than silently overwritten.
	LayoutFlatten LayoutPolicy = "flatten"

	// LayoutSubfolder places each object at output root + last prefix
	// segment + key relative to the prefix. Preserves sub-structure anchored
	// under a fixed subfolder. This is the default policy.
	LayoutSubfolder LayoutPolicy = "subfolder"
)

// Valid reports whether the policy is one of the recognized variants.
func (p LayoutPolicy) Valid() bool {
	switch p {
	case LayoutFullMirror, LayoutStripPrefix, LayoutFlatten, LayoutSubfolder:
		return true
	}
	return false
}

// ParseLayoutPolicy converts a configuration string into a LayoutPolicy.
func ParseLayoutPolicy(s string) (LayoutPolicy, error) {
	p := LayoutPolicy(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown layout policy %q (valid: %s, %s, %s, %s)",
			s, LayoutFullMirror, LayoutStripPrefix, LayoutFlatten, LayoutSubfolder)
	}
	return p, nil
}

// Object represents a remote object with its basic metadata.
// A key ending in "/" is a pseudo-directory marker carrying no payload.
type Object struct {
	// Key is the hierarchical object key (path)
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the backend entity tag for the object, when available
	ETag string
}

// IsMarker reports whether the object is a pseudo-directory marker.
// Markers are filtered during plan building and never produce work items.
func (o Object) IsMarker() bool {
	return len(o.Key) > 0 && o.Key[len(o.Key)-1] == '/'
}

// WorkItem pairs one remote object key with its resolved local path.
// Items are immutable and independent; no ordering or dependency exists
// between them.
type WorkItem struct {
	// Key is the remote object key
	Key string

	// Path is the resolved local filesystem path
	Path string

	// Size is the payload size in bytes when known from the listing,
	// or 0 when the backend did not report it
	Size int64
}

// OutcomeStatus classifies the terminal state of one work item.
type OutcomeStatus string

// Terminal states for a work item
const (
	// StatusSuccess means the payload was transferred completely
	StatusSuccess OutcomeStatus = "success"

	// StatusFailure means the transfer was attempted and failed
	StatusFailure OutcomeStatus = "failure"

	// StatusCancelled means the run was cancelled before the item started
	StatusCancelled OutcomeStatus = "cancelled"
)

// Outcome records the terminal state of one work item.
// Every planned item produces exactly one outcome; outcomes are collected,
// never discarded.
type Outcome struct {
	// Item is the work item this outcome belongs to
	Item WorkItem

	// Status is the terminal state
	Status OutcomeStatus

	// Bytes is the number of payload bytes written on success
	Bytes int64

	// Err holds the failure detail for StatusFailure and StatusCancelled
	Err error
}

// Report is the complete, order-independent record of outcomes for a run.
// It is produced once at the end of a run and immutable afterward.
type Report struct {
	// Outcomes holds one entry per work item
	Outcomes []Outcome

	// Succeeded is the number of successful transfers
	Succeeded int

	// Failed is the number of failed transfers
	Failed int

	// Cancelled is the number of items cancelled before starting
	Cancelled int

	// Bytes is the total payload bytes transferred
	Bytes int64

	// Duration is how long the run took
	Duration time.Duration
}

// Aggregate merges per-item outcomes into a Report. Pure accumulation:
// it never raises on partial failure; treating failures as fatal is the
// caller's decision.
func Aggregate(outcomes []Outcome) *Report {
	r := &Report{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			r.Succeeded++
			r.Bytes += o.Bytes
		case StatusFailure:
			r.Failed++
		case StatusCancelled:
			r.Cancelled++
		}
	}
	return r
}

// Ok reports whether the run completed with zero failures and zero
// cancellations.
func (r *Report) Ok() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

// Total returns the number of outcomes in the report.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Failures returns the failed outcomes for inspection.
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailure {
			failed = append(failed, o)
		}
	}
	return failed
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during a run.
type ProgressTracker interface {
	// Update is called after each completed item with cumulative progress
	Update(itemsDone, itemsTotal int, bytesTransferred int64)

	// Complete is called when the run finishes
	Complete()
}
