package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op only",
			err:  NewError("fetch", errors.New("boom")),
			want: "ckptsync.fetch: boom",
		},
		{
			name: "with key",
			err:  NewKeyError("download", "run42/model.bin", errors.New("boom")),
			want: "ckptsync.download object run42/model.bin: boom",
		},
		{
			name: "with path",
			err:  NewError("push", errors.New("boom")).WithPath("/data/model.bin"),
			want: "ckptsync.push path /data/model.bin: boom",
		},
		{
			name: "with key and path",
			err:  NewKeyError("fetch", "run42/model.bin", errors.New("boom")).WithPath("/out/model.bin"),
			want: "ckptsync.fetch run42/model.bin -> /out/model.bin: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := NewError("fetch", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.True(t, errors.Is(err, underlying))
}

func TestError_WithMessage(t *testing.T) {
	err := NewKeyError("download", "k", ErrRemoteNotFound).WithMessage("vanished after listing")

	assert.Contains(t, err.Error(), "vanished after listing")
	assert.True(t, errors.Is(err, ErrRemoteNotFound))
}

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"remote not found direct", ErrRemoteNotFound, IsRemoteNotFound, true},
		{"remote not found wrapped", NewKeyError("download", "k", ErrRemoteNotFound), IsRemoteNotFound, true},
		{"remote not found double wrapped", fmt.Errorf("outer: %w", NewError("x", ErrRemoteNotFound)), IsRemoteNotFound, true},
		{"not remote not found", ErrRemoteTransport, IsRemoteNotFound, false},
		{"invalid key wrapped", NewKeyError("map", "../etc", ErrInvalidKey), IsInvalidKey, true},
		{"cancelled wrapped", NewError("transfer", ErrCancelled), IsCancelled, true},
		{"cancelled against other", NewError("transfer", ErrLocalWrite), IsCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}
