package fserrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFactoryMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *FSError
		code Code
		want string
	}{
		{
			name: "already mounted",
			err:  NewAlreadyMounted("/mnt/idb"),
			code: ErrAlreadyMounted,
			want: "path '/mnt/idb' is already a file system mount point",
		},
		{
			name: "not mounted",
			err:  NewNotMounted("/mnt/idb"),
			code: ErrNotMounted,
			want: "path '/mnt/idb' is not a file system mount point",
		},
		{
			name: "not a directory",
			err:  NewNotDirectory("/mnt/file"),
			code: ErrNotDirectory,
			want: "path '/mnt/file' points to a file not a directory",
		},
		{
			name: "host path missing",
			err:  NewHostPathMissing("/no/such/dir"),
			code: ErrNotFound,
			want: "hostPath '/no/such/dir' does not exist",
		},
		{
			name: "host path not a directory",
			err:  NewHostPathNotDirectory("/etc/passwd"),
			code: ErrNotDirectory,
			want: "hostPath '/etc/passwd' is not a directory",
		},
		{
			name: "not empty",
			err:  NewNotEmpty("/mnt/full"),
			code: ErrNotEmpty,
			want: "directory '/mnt/full' is not empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %v, got %v", tt.code, tt.err.Code)
			}
			if tt.err.Error() != tt.want {
				t.Errorf("Expected message %q, got %q", tt.want, tt.err.Error())
			}
		})
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	inner := NewNotFound("/mnt/x")
	wrapped := fmt.Errorf("sync failed: %w", inner)

	if CodeOf(wrapped) != ErrNotFound {
		t.Errorf("Expected NotFound through wrapping, got %v", CodeOf(wrapped))
	}
	if !IsCode(wrapped, ErrNotFound) {
		t.Error("Expected IsCode to match through wrapping")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(errors.New("plain")) != 0 {
		t.Error("Expected zero code for non-FSError")
	}
	if CodeOf(nil) != 0 {
		t.Error("Expected zero code for nil")
	}
}

func TestErrorFallbackFormat(t *testing.T) {
	e := &FSError{Code: ErrIO, Path: "/mnt/x"}
	if e.Error() != "IOError: /mnt/x" {
		t.Errorf("Unexpected fallback format: %q", e.Error())
	}

	bare := &FSError{Code: ErrInvalidArgument}
	if bare.Error() != "InvalidArgument" {
		t.Errorf("Unexpected bare format: %q", bare.Error())
	}
}
