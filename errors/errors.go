// Package errors provides error types and handling for checkpoint transfers.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about what failed.
// It wraps the underlying backend or filesystem error with the operation name,
// the remote object key, and the local path where applicable.
type Error struct {
	// Op is the operation that failed (e.g., "fetch", "push", "list")
	Op string

	// Key is the remote object key (if applicable)
	Key string

	// Path is the local filesystem path (if applicable)
	Path string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Key != "" && e.Path != "" {
		return fmt.Sprintf("ckptsync.%s %s -> %s: %v", e.Op, e.Key, e.Path, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("ckptsync.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("ckptsync.%s path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("ckptsync.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithKey adds remote object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPath adds local path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewKeyError creates a new Error with remote object key context.
func NewKeyError(op, key string, err error) *Error {
	return &Error{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// Sentinel errors for the transfer failure taxonomy.
// These can be used with errors.Is() for error checking.
var (
	// ErrRemoteNotFound indicates that a listed object vanished before fetch time
	ErrRemoteNotFound = errors.New("ckptsync: remote object not found")

	// ErrRemoteTransport indicates a network or backend failure
	ErrRemoteTransport = errors.New("ckptsync: remote transport failure")

	// ErrLocalRead indicates a local filesystem read failure
	ErrLocalRead = errors.New("ckptsync: local read failure")

	// ErrLocalWrite indicates a local filesystem write failure
	ErrLocalWrite = errors.New("ckptsync: local write failure")

	// ErrInvalidKey indicates a malformed object key or one that would map
	// outside the output root
	ErrInvalidKey = errors.New("ckptsync: invalid object key")

	// ErrCancelled indicates the run was cancelled before the item started
	ErrCancelled = errors.New("ckptsync: transfer cancelled")

	// ErrNotSupported indicates the backend does not support the operation
	ErrNotSupported = errors.New("ckptsync: operation not supported")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("ckptsync: invalid input")
)

// IsRemoteNotFound checks if an error indicates that a remote object was not found.
func IsRemoteNotFound(err error) bool {
	return errors.Is(err, ErrRemoteNotFound)
}

// IsInvalidKey checks if an error indicates a rejected object key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsCancelled checks if an error indicates a cancelled transfer.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
